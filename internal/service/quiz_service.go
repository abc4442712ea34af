package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	UpdateTitle(ctx context.Context, id, title string) error
	ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
	FindQuestionByID(ctx context.Context, id string) (*models.QuizQuestion, error)
	ListOptionsByQuiz(ctx context.Context, quizID string) ([]models.QuizOption, error)
	CreateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error
	UpdateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error
	DeleteQuestion(ctx context.Context, id string) error
	UpsertRewards(ctx context.Context, reward *models.QuizReward) error
	FindRewards(ctx context.Context, quizID string) (*models.QuizReward, error)
	AnswerKey(ctx context.Context, quizID string) ([]models.AnswerKeyEntry, error)
	CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, reward models.QuizReward, quizLessonID, courseID string) error
	ListAttempts(ctx context.Context, quizID, userID string) ([]models.QuizAttempt, error)
}

type quizLessonReader interface {
	FindQuizLesson(ctx context.Context, courseID string) (*models.Lesson, error)
}

type attemptRecorder interface {
	RecordQuizAttempt(passed bool)
}

// QuizService covers quiz authoring and the grading engine.
type QuizService struct {
	repo      quizRepository
	courses   courseReader
	lessons   quizLessonReader
	metrics   attemptRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(repo quizRepository, courses courseReader, lessons quizLessonReader, metrics attemptRecorder, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{repo: repo, courses: courses, lessons: lessons, metrics: metrics, validator: validate, logger: logger}
}

// Create authors a new quiz under a course.
func (s *QuizService) Create(ctx context.Context, req models.CreateQuizRequest, actor Permissions) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	course, err := s.authorizeCourse(ctx, req.CourseID, actor)
	if err != nil {
		return nil, err
	}

	quiz := &models.Quiz{CourseID: course.ID, Title: req.Title, CreatedBy: actor.UserID}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// Update renames a quiz.
func (s *QuizService) Update(ctx context.Context, quizID string, req models.UpdateQuizRequest, actor Permissions) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	quiz, err := s.authorizeQuiz(ctx, quizID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTitle(ctx, quiz.ID, req.Title); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	quiz.Title = req.Title
	return quiz, nil
}

// GetFull returns the quiz with ordered questions, their options without
// answers, and the reward schedule.
func (s *QuizService) GetFull(ctx context.Context, quizID string) (*models.QuizFull, error) {
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	questions, err := s.repo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	options, err := s.repo.ListOptionsByQuiz(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load options")
	}

	byQuestion := make(map[string][]models.QuizOption, len(questions))
	for _, option := range options {
		byQuestion[option.QuestionID] = append(byQuestion[option.QuestionID], option)
	}

	full := &models.QuizFull{Quiz: *quiz, Questions: make([]models.QuestionWithOptions, 0, len(questions))}
	for _, question := range questions {
		full.Questions = append(full.Questions, models.QuestionWithOptions{
			QuizQuestion: question,
			Options:      byQuestion[question.ID],
		})
	}

	reward, err := s.repo.FindRewards(ctx, quizID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rewards")
	}
	full.Rewards = reward
	return full, nil
}

// ListByCourse returns a course's quizzes.
func (s *QuizService) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	quizzes, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// AddQuestion appends a question with its options. Exactly one option
// must be marked correct.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, req models.CreateQuestionRequest, actor Permissions) (*models.QuizQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if err := validateSingleCorrect(req.Options); err != nil {
		return nil, err
	}
	quiz, err := s.authorizeQuiz(ctx, quizID, actor)
	if err != nil {
		return nil, err
	}

	question := &models.QuizQuestion{QuizID: quiz.ID, QuestionText: req.QuestionText, OrderIndex: req.OrderIndex}
	options := optionInputs(req.Options)
	if err := s.repo.CreateQuestion(ctx, question, options); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// UpdateQuestion replaces a question's text and full option set.
func (s *QuizService) UpdateQuestion(ctx context.Context, questionID string, req models.UpdateQuestionRequest, actor Permissions) (*models.QuizQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if err := validateSingleCorrect(req.Options); err != nil {
		return nil, err
	}

	question, err := s.repo.FindQuestionByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.authorizeQuiz(ctx, question.QuizID, actor); err != nil {
		return nil, err
	}

	question.QuestionText = req.QuestionText
	options := optionInputs(req.Options)
	if err := s.repo.UpdateQuestion(ctx, question, options); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return question, nil
}

// DeleteQuestion removes a question.
func (s *QuizService) DeleteQuestion(ctx context.Context, questionID string, actor Permissions) error {
	question, err := s.repo.FindQuestionByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.authorizeQuiz(ctx, question.QuizID, actor); err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

// SetRewards replaces all four reward tiers atomically.
func (s *QuizService) SetRewards(ctx context.Context, quizID string, req models.SetRewardsRequest, actor Permissions) (*models.QuizReward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rewards payload")
	}
	quiz, err := s.authorizeQuiz(ctx, quizID, actor)
	if err != nil {
		return nil, err
	}

	reward := &models.QuizReward{
		QuizID:             quiz.ID,
		Attempt1Points:     req.Attempt1Points,
		Attempt2Points:     req.Attempt2Points,
		Attempt3Points:     req.Attempt3Points,
		Attempt4PlusPoints: req.Attempt4PlusPoints,
	}
	if err := s.repo.UpsertRewards(ctx, reward); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rewards")
	}
	return reward, nil
}

// SubmitAttempt grades a submission and records the immutable attempt.
// Unknown question answers are ignored; unanswered questions count wrong.
func (s *QuizService) SubmitAttempt(ctx context.Context, quizID, userID string, req models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}

	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	key, err := s.repo.AnswerKey(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answer key")
	}

	selected := make(map[string]string, len(req.Answers))
	for _, answer := range req.Answers {
		selected[answer.QuestionID] = answer.OptionID
	}

	correct := 0
	for _, entry := range key {
		if selected[entry.QuestionID] == entry.CorrectOptionID {
			correct++
		}
	}

	total := len(key)
	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(correct) / float64(total)))
	}
	passed := score >= models.PassingScore

	reward := models.QuizReward{QuizID: quizID}
	if stored, err := s.repo.FindRewards(ctx, quizID); err == nil {
		reward = *stored
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rewards")
	}

	quizLessonID := ""
	if passed {
		if lesson, err := s.lessons.FindQuizLesson(ctx, quiz.CourseID); err == nil {
			quizLessonID = lesson.ID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz lesson")
		}
	}

	attempt := &models.QuizAttempt{QuizID: quizID, UserID: userID, Score: score}
	if err := s.repo.CreateAttempt(ctx, attempt, reward, quizLessonID, quiz.CourseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attempt")
	}

	if s.metrics != nil {
		s.metrics.RecordQuizAttempt(passed)
	}

	return &models.SubmitAttemptResponse{
		Attempt:        *attempt,
		CorrectCount:   correct,
		TotalQuestions: total,
		Score:          score,
		Passed:         passed,
	}, nil
}

// ListAttempts returns the caller's graded attempts for a quiz, newest
// first.
func (s *QuizService) ListAttempts(ctx context.Context, quizID, userID string) ([]models.QuizAttempt, error) {
	if _, err := s.repo.FindByID(ctx, quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	attempts, err := s.repo.ListAttempts(ctx, quizID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	if attempts == nil {
		attempts = []models.QuizAttempt{}
	}
	return attempts, nil
}

func (s *QuizService) authorizeCourse(ctx context.Context, courseID string, actor Permissions) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.Owns(course.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may author quizzes")
	}
	return course, nil
}

func (s *QuizService) authorizeQuiz(ctx context.Context, quizID string, actor Permissions) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if _, err := s.authorizeCourse(ctx, quiz.CourseID, actor); err != nil {
		return nil, err
	}
	return quiz, nil
}

func validateSingleCorrect(options []models.QuestionOptionInput) error {
	correct := 0
	for _, option := range options {
		if option.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return appErrors.Clone(appErrors.ErrValidation, "exactly one option must be marked correct")
	}
	return nil
}

func optionInputs(inputs []models.QuestionOptionInput) []models.QuizOption {
	options := make([]models.QuizOption, 0, len(inputs))
	for i, input := range inputs {
		options = append(options, models.QuizOption{
			OptionText: input.OptionText,
			IsCorrect:  input.IsCorrect,
			OrderIndex: i,
		})
	}
	return options
}
