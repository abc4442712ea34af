package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleLearner    UserRole = "LEARNER"
)

// User represents an application user stored in the users table.
type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FullName         string     `db:"full_name" json:"full_name"`
	Username         string     `db:"username" json:"username"`
	Bio              string     `db:"bio" json:"bio,omitempty"`
	ProfilePhoto     string     `db:"profile_photo" json:"profile_photo,omitempty"`
	Role             UserRole   `db:"role" json:"role"`
	IsSuperAdmin     bool       `db:"is_super_admin" json:"is_super_admin"`
	Active           bool       `db:"active" json:"active"`
	ResetTokenHash   *string    `db:"reset_token_hash" json:"-"`
	ResetTokenExpiry *time.Time `db:"reset_token_expiry" json:"-"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile is the subset of a user visible to anyone.
type PublicProfile struct {
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	Bio          string    `db:"bio" json:"bio,omitempty"`
	ProfilePhoto string    `db:"profile_photo" json:"profile_photo,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"joined_at"`
}

// UpdateProfileRequest payload for editing the caller's own profile.
type UpdateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	Username     *string `json:"username,omitempty" validate:"omitempty,min=3,max=40,alphanum"`
	Bio          *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	ProfilePhoto *string `json:"profile_photo,omitempty" validate:"omitempty,url"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
