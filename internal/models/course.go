package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseVisibility controls who can see a course in the catalog.
type CourseVisibility string

// CourseAccessRule controls how a learner gains access to course content.
type CourseAccessRule string

const (
	VisibilityEveryone CourseVisibility = "EVERYONE"
	VisibilitySignedIn CourseVisibility = "SIGNED_IN"

	AccessOpen   CourseAccessRule = "OPEN"
	AccessInvite CourseAccessRule = "INVITE"
	AccessPaid   CourseAccessRule = "PAID"
)

// Course represents an authored course.
type Course struct {
	ID               string           `db:"id" json:"id"`
	Title            string           `db:"title" json:"title"`
	ShortDescription string           `db:"short_description" json:"short_description"`
	LongDescription  string           `db:"long_description" json:"long_description,omitempty"`
	Tags             pq.StringArray   `db:"tags" json:"tags"`
	Visibility       CourseVisibility `db:"visibility" json:"visibility"`
	AccessRule       CourseAccessRule `db:"access_rule" json:"access_rule"`
	PriceCents       int64            `db:"price_cents" json:"price_cents"`
	IsPublished      bool             `db:"is_published" json:"is_published"`
	CreatedBy        string           `db:"created_by" json:"created_by"`
	TotalViews       int64            `db:"total_views" json:"total_views"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// CourseSummary is a catalog row enriched with rating aggregates.
type CourseSummary struct {
	Course
	AvgRating   float64 `db:"avg_rating" json:"avg_rating"`
	ReviewCount int     `db:"review_count" json:"review_count"`
	LessonCount int     `db:"lesson_count" json:"lesson_count"`
}

// CourseDetail enriches a course with content statistics for the detail page.
type CourseDetail struct {
	Course
	AvgRating            float64 `db:"avg_rating" json:"avg_rating"`
	ReviewCount          int     `db:"review_count" json:"review_count"`
	LessonCount          int     `db:"lesson_count" json:"lesson_count"`
	TotalDurationSeconds int64   `db:"total_duration_seconds" json:"total_duration_seconds"`
	InstructorName       string  `db:"instructor_name" json:"instructor_name"`
}

// CreateCourseRequest payload for authoring a new course.
type CreateCourseRequest struct {
	Title            string           `json:"title" validate:"required,min=1,max=200"`
	ShortDescription string           `json:"short_description" validate:"required,max=500"`
	LongDescription  string           `json:"long_description" validate:"omitempty,max=20000"`
	Tags             []string         `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	Visibility       CourseVisibility `json:"visibility" validate:"required,oneof=EVERYONE SIGNED_IN"`
	AccessRule       CourseAccessRule `json:"access_rule" validate:"required,oneof=OPEN INVITE PAID"`
	PriceCents       int64            `json:"price_cents" validate:"omitempty,min=0"`
}

// UpdateCourseRequest payload for editing an existing course.
type UpdateCourseRequest struct {
	Title            *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	ShortDescription *string           `json:"short_description,omitempty" validate:"omitempty,max=500"`
	LongDescription  *string           `json:"long_description,omitempty" validate:"omitempty,max=20000"`
	Tags             []string          `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Visibility       *CourseVisibility `json:"visibility,omitempty" validate:"omitempty,oneof=EVERYONE SIGNED_IN"`
	AccessRule       *CourseAccessRule `json:"access_rule,omitempty" validate:"omitempty,oneof=OPEN INVITE PAID"`
	PriceCents       *int64            `json:"price_cents,omitempty" validate:"omitempty,min=0"`
}

// CourseFilter provides filters for the catalog listing.
type CourseFilter struct {
	Search  string
	Tags    []string
	OwnerID string
	// IncludeUnpublished lists the caller's own drafts alongside published rows.
	IncludeUnpublished bool
	SignedIn           bool
	Page               int
	PageSize           int
	SortBy             string
	SortOrder          string
}
