package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openlearn/lms-api/internal/models"
)

// QuizRepository handles persistence of quizzes, questions, rewards and
// graded attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create inserts a new quiz.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	const query = `INSERT INTO quizzes (id, course_id, title, created_by, created_at, updated_at)
        VALUES (:id, :course_id, :title, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// FindByID returns a quiz by identifier.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_by, created_at, updated_at FROM quizzes WHERE id = $1 LIMIT 1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quiz by id: %w", err)
	}
	return &quiz, nil
}

// ListByCourse returns all quizzes belonging to a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_by, created_at, updated_at FROM quizzes WHERE course_id = $1 ORDER BY created_at ASC`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// UpdateTitle renames a quiz.
func (r *QuizRepository) UpdateTitle(ctx context.Context, id, title string) error {
	const query = `UPDATE quizzes SET title = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, title, time.Now().UTC()); err != nil {
		return fmt.Errorf("update quiz title: %w", err)
	}
	return nil
}

// ListQuestions returns a quiz's questions ordered by position.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	const query = `SELECT id, quiz_id, question_text, order_index, created_at FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index ASC, created_at ASC`
	var questions []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// FindQuestionByID returns a question by identifier.
func (r *QuizRepository) FindQuestionByID(ctx context.Context, id string) (*models.QuizQuestion, error) {
	const query = `SELECT id, quiz_id, question_text, order_index, created_at FROM quiz_questions WHERE id = $1 LIMIT 1`
	var question models.QuizQuestion
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find question by id: %w", err)
	}
	return &question, nil
}

// ListOptionsByQuiz returns every option for a quiz keyed by question.
func (r *QuizRepository) ListOptionsByQuiz(ctx context.Context, quizID string) ([]models.QuizOption, error) {
	const query = `SELECT o.id, o.question_id, o.option_text, o.is_correct, o.order_index
        FROM quiz_options o
        JOIN quiz_questions q ON q.id = o.question_id
        WHERE q.quiz_id = $1
        ORDER BY o.order_index ASC`
	var options []models.QuizOption
	if err := r.db.SelectContext(ctx, &options, query, quizID); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return options, nil
}

// CreateQuestion inserts a question with its options in one transaction.
func (r *QuizRepository) CreateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}
	const insertQuestion = `INSERT INTO quiz_questions (id, quiz_id, question_text, order_index, created_at)
        VALUES (:id, :quiz_id, :question_text, :order_index, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuestion, question); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert question: %w", err)
	}

	if err := insertOptionsTx(ctx, tx, question.ID, options); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question: %w", err)
	}
	return nil
}

// UpdateQuestion replaces a question's text and full option set atomically.
func (r *QuizRepository) UpdateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const updateQuestion = `UPDATE quiz_questions SET question_text = :question_text WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuestion, question); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update question: %w", err)
	}

	const deleteOptions = `DELETE FROM quiz_options WHERE question_id = $1`
	if _, err := tx.ExecContext(ctx, deleteOptions, question.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete options: %w", err)
	}

	if err := insertOptionsTx(ctx, tx, question.ID, options); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question update: %w", err)
	}
	return nil
}

func insertOptionsTx(ctx context.Context, tx *sqlx.Tx, questionID string, options []models.QuizOption) error {
	const insertOption = `INSERT INTO quiz_options (id, question_id, option_text, is_correct, order_index)
        VALUES (:id, :question_id, :option_text, :is_correct, :order_index)`
	for i := range options {
		if options[i].ID == "" {
			options[i].ID = uuid.NewString()
		}
		options[i].QuestionID = questionID
		if options[i].OrderIndex == 0 {
			options[i].OrderIndex = i
		}
		if _, err := tx.NamedExecContext(ctx, insertOption, options[i]); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}
	return nil
}

// DeleteQuestion removes a question and its options.
func (r *QuizRepository) DeleteQuestion(ctx context.Context, id string) error {
	const query = `DELETE FROM quiz_questions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// UpsertRewards replaces all four reward tiers in a single statement.
func (r *QuizRepository) UpsertRewards(ctx context.Context, reward *models.QuizReward) error {
	const query = `INSERT INTO quiz_rewards (quiz_id, attempt_1_points, attempt_2_points, attempt_3_points, attempt_4_plus_points)
        VALUES (:quiz_id, :attempt_1_points, :attempt_2_points, :attempt_3_points, :attempt_4_plus_points)
        ON CONFLICT (quiz_id) DO UPDATE
        SET attempt_1_points = EXCLUDED.attempt_1_points,
            attempt_2_points = EXCLUDED.attempt_2_points,
            attempt_3_points = EXCLUDED.attempt_3_points,
            attempt_4_plus_points = EXCLUDED.attempt_4_plus_points`
	if _, err := r.db.NamedExecContext(ctx, query, reward); err != nil {
		return fmt.Errorf("upsert rewards: %w", err)
	}
	return nil
}

// FindRewards returns the reward schedule for a quiz.
func (r *QuizRepository) FindRewards(ctx context.Context, quizID string) (*models.QuizReward, error) {
	const query = `SELECT quiz_id, attempt_1_points, attempt_2_points, attempt_3_points, attempt_4_plus_points FROM quiz_rewards WHERE quiz_id = $1 LIMIT 1`
	var reward models.QuizReward
	if err := r.db.GetContext(ctx, &reward, query, quizID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find rewards: %w", err)
	}
	return &reward, nil
}

// AnswerKey returns the correct option per question for grading.
func (r *QuizRepository) AnswerKey(ctx context.Context, quizID string) ([]models.AnswerKeyEntry, error) {
	const query = `SELECT q.id AS question_id, o.id AS correct_option_id
        FROM quiz_questions q
        JOIN quiz_options o ON o.question_id = q.id AND o.is_correct = TRUE
        WHERE q.quiz_id = $1
        ORDER BY q.order_index ASC`
	var key []models.AnswerKeyEntry
	if err := r.db.SelectContext(ctx, &key, query, quizID); err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	return key, nil
}

// CreateAttempt records a graded attempt inside one transaction: the
// attempt ordinal is counted, reward points resolved, the immutable row
// inserted, and on a pass the course's quiz lesson marked completed.
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, reward models.QuizReward, quizLessonID, courseID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const countQuery = `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND user_id = $2`
	var prior int
	if err := tx.GetContext(ctx, &prior, countQuery, attempt.QuizID, attempt.UserID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("count attempts: %w", err)
	}

	attempt.AttemptNumber = prior + 1
	passed := attempt.Score >= models.PassingScore
	if passed {
		attempt.PointsEarned = reward.PointsForAttempt(attempt.AttemptNumber)
	} else {
		attempt.PointsEarned = 0
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	attempt.Status = models.AttemptStatusGraded
	if attempt.CompletedAt.IsZero() {
		attempt.CompletedAt = time.Now().UTC()
	}

	const insertAttempt = `INSERT INTO quiz_attempts (id, quiz_id, user_id, score, attempt_number, points_earned, status, completed_at)
        VALUES (:id, :quiz_id, :user_id, :score, :attempt_number, :points_earned, :status, :completed_at)`
	if _, err := tx.NamedExecContext(ctx, insertAttempt, attempt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert attempt: %w", err)
	}

	if passed && quizLessonID != "" {
		now := time.Now().UTC()
		const complete = `INSERT INTO lesson_progress (id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds, updated_at)
            VALUES ($1, $2, $3, $4, TRUE, $5, 0, $5)
            ON CONFLICT (user_id, lesson_id) DO UPDATE
            SET completed = TRUE,
                completed_at = COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at),
                updated_at = EXCLUDED.updated_at`
		if _, err := tx.ExecContext(ctx, complete, uuid.NewString(), attempt.UserID, quizLessonID, courseID, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("complete quiz lesson: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a learner's attempts for one quiz, newest first.
func (r *QuizRepository) ListAttempts(ctx context.Context, quizID, userID string) ([]models.QuizAttempt, error) {
	const query = `SELECT id, quiz_id, user_id, score, attempt_number, points_earned, status, completed_at FROM quiz_attempts WHERE quiz_id = $1 AND user_id = $2 ORDER BY attempt_number DESC`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, quizID, userID); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
