package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

// ReviewRepository handles persistence of course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. The unique (course_id, user_id) constraint
// surfaces as ErrDuplicateReview.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	const query = `INSERT INTO reviews (id, course_id, user_id, rating, review_text, created_at, updated_at)
        VALUES (:id, :course_id, :user_id, :rating, :review_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.ErrDuplicateReview
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByID returns a review by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	const query = `SELECT id, course_id, user_id, rating, review_text, created_at, updated_at FROM reviews WHERE id = $1 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by id: %w", err)
	}
	return &review, nil
}

// ListByCourse returns a course's reviews with author info, newest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewDetail, error) {
	const query = `SELECT rv.id, rv.course_id, rv.user_id, rv.rating, rv.review_text, rv.created_at, rv.updated_at,
        u.full_name AS author_name, u.profile_photo AS author_photo
        FROM reviews rv
        JOIN users u ON u.id = rv.user_id
        WHERE rv.course_id = $1
        ORDER BY rv.created_at DESC`
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, courseID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// AverageForCourse returns the average rating and review count.
func (r *ReviewRepository) AverageForCourse(ctx context.Context, courseID string) (float64, int, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count FROM reviews WHERE course_id = $1`
	row := struct {
		AvgRating   float64 `db:"avg_rating"`
		ReviewCount int     `db:"review_count"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, courseID); err != nil {
		return 0, 0, fmt.Errorf("average reviews: %w", err)
	}
	return row.AvgRating, row.ReviewCount, nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
