package models

import "time"

// Review is a learner's rating of a course. One per (course, user).
type Review struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Rating     int       `db:"rating" json:"rating"`
	ReviewText string    `db:"review_text" json:"review_text,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDetail enriches a review with author info.
type ReviewDetail struct {
	Review
	AuthorName  string `db:"author_name" json:"author_name"`
	AuthorPhoto string `db:"author_photo" json:"author_photo,omitempty"`
}

// CreateReviewRequest payload for reviewing a course.
type CreateReviewRequest struct {
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	ReviewText string `json:"review_text" validate:"omitempty,max=5000"`
}
