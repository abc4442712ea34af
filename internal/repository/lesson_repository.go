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

const lessonColumns = `id, course_id, title, type, content_url, duration_seconds, allow_download, description, order_index, created_by, created_at, updated_at`

// LessonRepository handles persistence of lessons and their attachments.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, course_id, title, type, content_url, duration_seconds, allow_download, description, order_index, created_by, created_at, updated_at)
        VALUES (:id, :course_id, :title, :type, :content_url, :duration_seconds, :allow_download, :description, :order_index, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// FindByID returns a lesson by identifier.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE id = $1 LIMIT 1`, lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// ListByCourse returns a course's lessons ordered by position.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE course_id = $1 ORDER BY order_index ASC, created_at ASC`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// CountByCourse returns the number of lessons in a course.
func (r *LessonRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

// FindQuizLesson returns the course's QUIZ-type lesson when one exists.
func (r *LessonRepository) FindQuizLesson(ctx context.Context, courseID string) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE course_id = $1 AND type = $2 ORDER BY order_index ASC LIMIT 1`, lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, courseID, models.LessonQuiz); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quiz lesson: %w", err)
	}
	return &lesson, nil
}

// Update updates mutable fields of a lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET title = :title, type = :type, content_url = :content_url, duration_seconds = :duration_seconds, allow_download = :allow_download, description = :description, order_index = :order_index, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson and its attachments.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// CreateAttachment inserts a lesson attachment.
func (r *LessonRepository) CreateAttachment(ctx context.Context, attachment *models.LessonAttachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_attachments (id, lesson_id, title, file_url, file_size, file_type, created_at)
        VALUES (:id, :lesson_id, :title, :file_url, :file_size, :file_type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attachment); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// ListAttachments returns all attachments for a lesson.
func (r *LessonRepository) ListAttachments(ctx context.Context, lessonID string) ([]models.LessonAttachment, error) {
	const query = `SELECT id, lesson_id, title, file_url, file_size, file_type, created_at FROM lesson_attachments WHERE lesson_id = $1 ORDER BY created_at ASC`
	var attachments []models.LessonAttachment
	if err := r.db.SelectContext(ctx, &attachments, query, lessonID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// FindAttachmentByID returns an attachment by identifier.
func (r *LessonRepository) FindAttachmentByID(ctx context.Context, id string) (*models.LessonAttachment, error) {
	const query = `SELECT id, lesson_id, title, file_url, file_size, file_type, created_at FROM lesson_attachments WHERE id = $1 LIMIT 1`
	var attachment models.LessonAttachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attachment by id: %w", err)
	}
	return &attachment, nil
}

// DeleteAttachment removes an attachment.
func (r *LessonRepository) DeleteAttachment(ctx context.Context, id string) error {
	const query = `DELETE FROM lesson_attachments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
