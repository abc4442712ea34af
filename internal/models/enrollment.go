package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentInvited   EnrollmentStatus = "INVITED"
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures a user's access to a course. One row per
// (user, course) pair; transitions update the row in place.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	UserID       string           `db:"user_id" json:"user_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	InviteToken  *string          `db:"invite_token" json:"-"`
	InvitedBy    *string          `db:"invited_by" json:"invited_by,omitempty"`
	PaymentTxnID *string          `db:"payment_txn_id" json:"payment_txn_id,omitempty"`
	EnrolledAt   *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course and inviter info.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle    string  `db:"course_title" json:"course_title"`
	CourseImage    string  `db:"course_image" json:"course_image,omitempty"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	InviterName    *string `db:"inviter_name" json:"inviter_name,omitempty"`
}

// EnrollRequest carries optional credentials for gated courses.
type EnrollRequest struct {
	InviteToken  string `json:"invite_token" validate:"omitempty,min=1"`
	PaymentTxnID string `json:"payment_txn_id" validate:"omitempty,min=1"`
}

// CreateInviteRequest invites a registered user to a course by email.
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// InviteResult returns the plaintext token exactly once, at creation.
type InviteResult struct {
	Enrollment Enrollment `json:"enrollment"`
	Token      string     `json:"token"`
}

// UpdateEnrollmentStatusRequest moves an enrollment between states.
type UpdateEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED CANCELLED"`
}
