package models

import "time"

// LessonType enumerates supported lesson content kinds.
type LessonType string

const (
	LessonVideo    LessonType = "VIDEO"
	LessonDocument LessonType = "DOCUMENT"
	LessonImage    LessonType = "IMAGE"
	LessonLink     LessonType = "LINK"
	LessonQuiz     LessonType = "QUIZ"
)

// Lesson is a single unit of course content.
type Lesson struct {
	ID              string     `db:"id" json:"id"`
	CourseID        string     `db:"course_id" json:"course_id"`
	Title           string     `db:"title" json:"title"`
	Type            LessonType `db:"type" json:"type"`
	ContentURL      string     `db:"content_url" json:"content_url,omitempty"`
	DurationSeconds int        `db:"duration_seconds" json:"duration_seconds"`
	AllowDownload   bool       `db:"allow_download" json:"allow_download"`
	Description     string     `db:"description" json:"description,omitempty"`
	OrderIndex      int        `db:"order_index" json:"order_index"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LessonAttachment is a downloadable file linked to a lesson.
type LessonAttachment struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	Title     string    `db:"title" json:"title"`
	FileURL   string    `db:"file_url" json:"file_url"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileType  string    `db:"file_type" json:"file_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateLessonRequest payload for adding a lesson to a course.
type CreateLessonRequest struct {
	Title           string     `json:"title" validate:"required,min=1,max=200"`
	Type            LessonType `json:"type" validate:"required,oneof=VIDEO DOCUMENT IMAGE LINK QUIZ"`
	ContentURL      string     `json:"content_url" validate:"omitempty,url"`
	DurationSeconds int        `json:"duration_seconds" validate:"omitempty,min=0"`
	AllowDownload   bool       `json:"allow_download"`
	Description     string     `json:"description" validate:"omitempty,max=5000"`
	OrderIndex      int        `json:"order_index" validate:"omitempty,min=0"`
}

// UpdateLessonRequest payload for editing a lesson.
type UpdateLessonRequest struct {
	Title           *string     `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Type            *LessonType `json:"type,omitempty" validate:"omitempty,oneof=VIDEO DOCUMENT IMAGE LINK QUIZ"`
	ContentURL      *string     `json:"content_url,omitempty" validate:"omitempty,url"`
	DurationSeconds *int        `json:"duration_seconds,omitempty" validate:"omitempty,min=0"`
	AllowDownload   *bool       `json:"allow_download,omitempty"`
	Description     *string     `json:"description,omitempty" validate:"omitempty,max=5000"`
	OrderIndex      *int        `json:"order_index,omitempty" validate:"omitempty,min=0"`
}

// CreateAttachmentRequest payload for attaching a file to a lesson.
type CreateAttachmentRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	FileURL  string `json:"file_url" validate:"required"`
	FileSize int64  `json:"file_size" validate:"omitempty,min=0"`
	FileType string `json:"file_type" validate:"omitempty,max=100"`
}
