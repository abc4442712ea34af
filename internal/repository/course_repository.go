package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openlearn/lms-api/internal/models"
)

const courseColumns = `id, title, short_description, long_description, tags, visibility, access_rule, price_cents, is_published, created_by, total_views, created_at, updated_at`

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Tags == nil {
		course.Tags = pq.StringArray{}
	}

	const query = `INSERT INTO courses (id, title, short_description, long_description, tags, visibility, access_rule, price_cents, is_published, created_by, total_views, created_at, updated_at)
        VALUES (:id, :title, :short_description, :long_description, :tags, :visibility, :access_rule, :price_cents, :is_published, :created_by, :total_views, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 LIMIT 1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// FindDetailByID returns a course enriched with aggregates and bumps the
// view counter in the same transaction.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string, countView bool) (*models.CourseDetail, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if countView {
		const bump = `UPDATE courses SET total_views = total_views + 1 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, bump, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("increment course views: %w", err)
		}
	}

	const query = `SELECT c.id, c.title, c.short_description, c.long_description, c.tags, c.visibility, c.access_rule, c.price_cents, c.is_published, c.created_by, c.total_views, c.created_at, c.updated_at,
        COALESCE(rv.avg_rating, 0) AS avg_rating,
        COALESCE(rv.review_count, 0) AS review_count,
        COALESCE(ls.lesson_count, 0) AS lesson_count,
        COALESCE(ls.total_duration_seconds, 0) AS total_duration_seconds,
        u.full_name AS instructor_name
        FROM courses c
        JOIN users u ON u.id = c.created_by
        LEFT JOIN (SELECT course_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count FROM reviews GROUP BY course_id) rv ON rv.course_id = c.id
        LEFT JOIN (SELECT course_id, COUNT(*) AS lesson_count, SUM(duration_seconds) AS total_duration_seconds FROM lessons GROUP BY course_id) ls ON ls.course_id = c.id
        WHERE c.id = $1`
	var detail models.CourseDetail
	if err := tx.GetContext(ctx, &detail, query, id); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course detail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course detail: %w", err)
	}
	return &detail, nil
}

// List returns catalog rows filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error) {
	base := `FROM courses c
LEFT JOIN (SELECT course_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count FROM reviews GROUP BY course_id) rv ON rv.course_id = c.id
LEFT JOIN (SELECT course_id, COUNT(*) AS lesson_count FROM lessons GROUP BY course_id) ls ON ls.course_id = c.id`
	var conditions []string
	var args []interface{}

	if filter.IncludeUnpublished && filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("(c.is_published = TRUE OR c.created_by = $%d)", len(args)+1))
		args = append(args, filter.OwnerID)
	} else {
		conditions = append(conditions, "c.is_published = TRUE")
	}
	if !filter.SignedIn {
		conditions = append(conditions, fmt.Sprintf("c.visibility = $%d", len(args)+1))
		args = append(args, models.VisibilityEveryone)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("c.tags && $%d", len(args)+1))
		args = append(args, pq.StringArray(filter.Tags))
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at": "c.created_at",
		"title":      "c.title",
		"views":      "c.total_views",
		"rating":     "avg_rating",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.title, c.short_description, c.long_description, c.tags, c.visibility, c.access_rule, c.price_cents, c.is_published, c.created_by, c.total_views, c.created_at, c.updated_at,
        COALESCE(rv.avg_rating, 0) AS avg_rating,
        COALESCE(rv.review_count, 0) AS review_count,
        COALESCE(ls.lesson_count, 0) AS lesson_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Update updates mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, short_description = :short_description, long_description = :long_description, tags = :tags, visibility = :visibility, access_rule = :access_rule, price_cents = :price_cents, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetPublished toggles the published flag.
func (r *CourseRepository) SetPublished(ctx context.Context, id string, published bool) error {
	const query = `UPDATE courses SET is_published = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, published, time.Now().UTC()); err != nil {
		return fmt.Errorf("set course published: %w", err)
	}
	return nil
}

// Delete removes a course. Dependent rows cascade at the schema level.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}
