package models

import "time"

// UserRole represents the coarse role label for the RBAC system. It is a
// closed enumeration; per-program approval authority lives in the
// approvers table, not in this label.
type UserRole string

const (
	RoleStudent  UserRole = "STUDENT"
	RoleApprover UserRole = "APPROVER"
	RoleAdmin    UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Role           UserRole  `db:"role" json:"role"`
	StudyProgramID *string   `db:"study_program_id" json:"study_program_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	Verified       *bool     `db:"verified" json:"verified,omitempty"`
	Locale         *string   `db:"locale" json:"locale,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Actor identifies the authenticated principal performing a core
// operation. It is passed explicitly into services, never read from
// ambient state.
type Actor struct {
	UserID string
	Email  string
	Role   UserRole
}
