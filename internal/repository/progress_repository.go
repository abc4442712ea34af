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

// ProgressRepository handles lesson progress rows and learner aggregates.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert records activity for a (user, lesson) pair. Time spent is
// additive; the completed flag always takes the incoming value, while
// completed_at is stamped on the first completion and never cleared.
func (r *ProgressRepository) Upsert(ctx context.Context, userID, lessonID, courseID string, completed bool, timeSpentDelta int64) (*models.LessonProgress, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO lesson_progress (id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds, updated_at)
        VALUES ($1, $2, $3, $4, $5, CASE WHEN $5 THEN $6 ELSE NULL END, $7, $6)
        ON CONFLICT (user_id, lesson_id) DO UPDATE
        SET completed = EXCLUDED.completed,
            completed_at = COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at),
            time_spent_seconds = lesson_progress.time_spent_seconds + EXCLUDED.time_spent_seconds,
            updated_at = EXCLUDED.updated_at
        RETURNING id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds, updated_at`

	var progress models.LessonProgress
	if err := r.db.GetContext(ctx, &progress, query, uuid.NewString(), userID, lessonID, courseID, completed, now, timeSpentDelta); err != nil {
		return nil, fmt.Errorf("upsert lesson progress: %w", err)
	}
	return &progress, nil
}

// FindByUserAndLesson returns the progress row for a (user, lesson) pair.
func (r *ProgressRepository) FindByUserAndLesson(ctx context.Context, userID, lessonID string) (*models.LessonProgress, error) {
	const query = `SELECT id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds, updated_at FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2 LIMIT 1`
	var progress models.LessonProgress
	if err := r.db.GetContext(ctx, &progress, query, userID, lessonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson progress: %w", err)
	}
	return &progress, nil
}

// ListByUserAndCourse returns a learner's progress rows within a course.
func (r *ProgressRepository) ListByUserAndCourse(ctx context.Context, userID, courseID string) ([]models.LessonProgress, error) {
	const query = `SELECT id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds, updated_at FROM lesson_progress WHERE user_id = $1 AND course_id = $2`
	var rows []models.LessonProgress
	if err := r.db.SelectContext(ctx, &rows, query, userID, courseID); err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	return rows, nil
}

// CourseCounts returns completed and total lesson counts for a learner
// within one course.
func (r *ProgressRepository) CourseCounts(ctx context.Context, userID, courseID string) (completed, total int, err error) {
	const query = `SELECT
        COALESCE((SELECT COUNT(*) FROM lesson_progress WHERE user_id = $1 AND course_id = $2 AND completed = TRUE), 0) AS completed,
        COALESCE((SELECT COUNT(*) FROM lessons WHERE course_id = $2), 0) AS total`
	row := struct {
		Completed int `db:"completed"`
		Total     int `db:"total"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, userID, courseID); err != nil {
		return 0, 0, fmt.Errorf("count course progress: %w", err)
	}
	return row.Completed, row.Total, nil
}

// LearnerStats aggregates a learner's lifetime activity across courses.
func (r *ProgressRepository) LearnerStats(ctx context.Context, userID string) (*models.LearnerStats, error) {
	const query = `SELECT
        COALESCE((SELECT COUNT(DISTINCT course_id) FROM enrollments WHERE user_id = $1 AND status IN ('ACTIVE', 'COMPLETED')), 0) AS enrolled_courses,
        COALESCE((SELECT COUNT(*) FROM lesson_progress WHERE user_id = $1 AND completed = TRUE), 0) AS completed_lessons,
        COALESCE((SELECT SUM(points_earned) FROM quiz_attempts WHERE user_id = $1), 0) AS total_points`
	var stats models.LearnerStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("load learner stats: %w", err)
	}
	return &stats, nil
}
