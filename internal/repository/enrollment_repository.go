package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openlearn/lms-api/internal/models"
)

const enrollmentColumns = `id, user_id, course_id, status, invite_token, invited_by, payment_txn_id, enrolled_at, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByUserAndCourse returns the enrollment row for a (user, course) pair.
func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// UpsertActive activates an enrollment, creating the row when absent.
// Re-enrolling after a cancellation reuses the same row.
func (r *EnrollmentRepository) UpsertActive(ctx context.Context, userID, courseID string, paymentTxnID *string) (*models.Enrollment, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO enrollments (id, user_id, course_id, status, payment_txn_id, enrolled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
        ON CONFLICT (user_id, course_id) DO UPDATE
        SET status = EXCLUDED.status,
            payment_txn_id = COALESCE(EXCLUDED.payment_txn_id, enrollments.payment_txn_id),
            enrolled_at = COALESCE(enrollments.enrolled_at, EXCLUDED.enrolled_at),
            updated_at = EXCLUDED.updated_at
        RETURNING %s`, enrollmentColumns)

	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, uuid.NewString(), userID, courseID, models.EnrollmentActive, paymentTxnID, now); err != nil {
		return nil, fmt.Errorf("upsert active enrollment: %w", err)
	}
	return &enrollment, nil
}

// UpsertInvited creates or refreshes a pending invite, rotating any prior
// token for the pair.
func (r *EnrollmentRepository) UpsertInvited(ctx context.Context, userID, courseID, tokenHash, invitedBy string) (*models.Enrollment, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO enrollments (id, user_id, course_id, status, invite_token, invited_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT (user_id, course_id) DO UPDATE
        SET status = EXCLUDED.status,
            invite_token = EXCLUDED.invite_token,
            invited_by = EXCLUDED.invited_by,
            updated_at = EXCLUDED.updated_at
        RETURNING %s`, enrollmentColumns)

	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, uuid.NewString(), userID, courseID, models.EnrollmentInvited, tokenHash, invitedBy, now); err != nil {
		return nil, fmt.Errorf("upsert invited enrollment: %w", err)
	}
	return &enrollment, nil
}

// ActivateInvited promotes a pending invite to ACTIVE inside one
// transaction. A non-empty tokenHash must match the stored token for this
// exact pair; an empty tokenHash claims the caller's own pending invite.
// Returns sql.ErrNoRows when no qualifying invite exists.
func (r *EnrollmentRepository) ActivateInvited(ctx context.Context, userID, courseID, tokenHash string) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	lock := fmt.Sprintf(`SELECT %s FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3`, enrollmentColumns)
	args := []interface{}{userID, courseID, models.EnrollmentInvited}
	if tokenHash != "" {
		lock += " AND invite_token = $4"
		args = append(args, tokenHash)
	}
	lock += " FOR UPDATE"

	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, lock, args...); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock invited enrollment: %w", err)
	}

	now := time.Now().UTC()
	update := fmt.Sprintf(`UPDATE enrollments SET status = $2, invite_token = NULL, enrolled_at = $3, updated_at = $3 WHERE id = $1 RETURNING %s`, enrollmentColumns)
	if err := tx.GetContext(ctx, &enrollment, update, enrollment.ID, models.EnrollmentActive, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("activate invited enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invite activation: %w", err)
	}
	return &enrollment, nil
}

// UpdateStatus moves an enrollment between states. Activation stamps
// enrolled_at only when it was never set.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, userID, courseID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE enrollments
        SET status = $3,
            enrolled_at = CASE WHEN $3 = 'ACTIVE' THEN COALESCE(enrolled_at, $4) ELSE enrolled_at END,
            updated_at = $4
        WHERE user_id = $1 AND course_id = $2
        RETURNING %s`, enrollmentColumns)

	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID, status, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}
	return &enrollment, nil
}

// ListByUser returns a user's enrollments enriched with course info.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string, statuses []models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.user_id, e.course_id, e.status, e.invite_token, e.invited_by, e.payment_txn_id, e.enrolled_at, e.created_at, e.updated_at,
        c.title AS course_title, owner.full_name AS instructor_name, inviter.full_name AS inviter_name
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN users owner ON owner.id = c.created_by
        LEFT JOIN users inviter ON inviter.id = e.invited_by
        WHERE e.user_id = $1`
	args := []interface{}{userID}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, status := range statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query += fmt.Sprintf(" AND e.status IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY e.updated_at DESC"

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}
