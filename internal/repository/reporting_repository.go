package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openlearn/lms-api/internal/models"
)

// ReportingRepository serves read-only projections for instructor reports.
type ReportingRepository struct {
	db *sqlx.DB
}

// NewReportingRepository constructs the repository.
func NewReportingRepository(db *sqlx.DB) *ReportingRepository {
	return &ReportingRepository{db: db}
}

// CompletionFunnel buckets a course's active learners into
// yet-to-start / in-progress / completed based on lesson progress.
func (r *ReportingRepository) CompletionFunnel(ctx context.Context, courseID string) (*models.CompletionFunnel, error) {
	const query = `WITH learners AS (
            SELECT e.user_id
            FROM enrollments e
            WHERE e.course_id = $1 AND e.status IN ('ACTIVE', 'COMPLETED')
        ), lesson_total AS (
            SELECT COUNT(*) AS total FROM lessons WHERE course_id = $1
        ), per_learner AS (
            SELECT l.user_id,
                COALESCE((SELECT COUNT(*) FROM lesson_progress p WHERE p.user_id = l.user_id AND p.course_id = $1 AND p.completed = TRUE), 0) AS done,
                (SELECT total FROM lesson_total) AS total
            FROM learners l
        )
        SELECT
            COALESCE(SUM(CASE WHEN done = 0 THEN 1 ELSE 0 END), 0) AS yet_to_start,
            COALESCE(SUM(CASE WHEN done > 0 AND (total = 0 OR done < total) THEN 1 ELSE 0 END), 0) AS in_progress,
            COALESCE(SUM(CASE WHEN total > 0 AND done >= total THEN 1 ELSE 0 END), 0) AS completed,
            COALESCE(COUNT(*), 0) AS enrolled
        FROM per_learner`
	var funnel models.CompletionFunnel
	if err := r.db.GetContext(ctx, &funnel, query, courseID); err != nil {
		return nil, fmt.Errorf("load completion funnel: %w", err)
	}
	funnel.CourseID = courseID
	return &funnel, nil
}

// LearnerRows returns the per-learner standing for one course.
func (r *ReportingRepository) LearnerRows(ctx context.Context, courseID string) ([]models.LearnerReportRow, error) {
	const query = `SELECT e.user_id,
            u.full_name,
            u.email,
            COALESCE(p.done, 0) AS completed_lessons,
            COALESCE(lt.total, 0) AS total_lessons,
            CASE WHEN COALESCE(lt.total, 0) = 0 THEN 0
                 ELSE ROUND(100.0 * COALESCE(p.done, 0) / lt.total, 2) END AS percentage,
            COALESCE(a.high_score, 0) AS high_score,
            COALESCE(a.total_points, 0) AS total_points
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        LEFT JOIN (SELECT user_id, COUNT(*) AS done FROM lesson_progress WHERE course_id = $1 AND completed = TRUE GROUP BY user_id) p ON p.user_id = e.user_id
        LEFT JOIN (SELECT COUNT(*) AS total FROM lessons WHERE course_id = $1) lt ON TRUE
        LEFT JOIN (SELECT qa.user_id, MAX(qa.score) AS high_score, SUM(qa.points_earned) AS total_points
                   FROM quiz_attempts qa
                   JOIN quizzes q ON q.id = qa.quiz_id
                   WHERE q.course_id = $1
                   GROUP BY qa.user_id) a ON a.user_id = e.user_id
        WHERE e.course_id = $1 AND e.status IN ('ACTIVE', 'COMPLETED')
        ORDER BY u.full_name ASC`
	var rows []models.LearnerReportRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("load learner report: %w", err)
	}
	return rows, nil
}

// InstructorOverview rolls up every course owned by the instructor.
func (r *ReportingRepository) InstructorOverview(ctx context.Context, ownerID string) ([]models.InstructorOverviewRow, error) {
	const query = `SELECT c.id AS course_id,
            c.title AS course_title,
            c.is_published,
            COALESCE(en.enrolled, 0) AS enrolled_count,
            COALESCE(en.completed, 0) AS completed_count,
            COALESCE(rv.avg_rating, 0) AS avg_rating,
            COALESCE(rv.review_count, 0) AS review_count,
            c.total_views
        FROM courses c
        LEFT JOIN (SELECT course_id,
                COUNT(*) FILTER (WHERE status IN ('ACTIVE', 'COMPLETED')) AS enrolled,
                COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed
            FROM enrollments GROUP BY course_id) en ON en.course_id = c.id
        LEFT JOIN (SELECT course_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count FROM reviews GROUP BY course_id) rv ON rv.course_id = c.id
        WHERE c.created_by = $1
        ORDER BY c.created_at DESC`
	var rows []models.InstructorOverviewRow
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("load instructor overview: %w", err)
	}
	return rows, nil
}
