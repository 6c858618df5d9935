package models

import "time"

// RequestStatus represents the lifecycle of an exception request.
// PENDING is the only non-terminal state: a request moves once to
// APPROVED, REJECTED or EXPIRED and never back.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
	StatusExpired  RequestStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transition.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Request is a student's driver's-license-exception request against a
// study program.
type Request struct {
	ID                  string        `db:"id" json:"id"`
	UserID              string        `db:"user_id" json:"user_id"`
	StudyProgramID      string        `db:"study_program_id" json:"study_program_id"`
	Status              RequestStatus `db:"status" json:"status"`
	SubmittedAt         time.Time     `db:"submitted_at" json:"submitted_at"`
	ExpiresAt           *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	ApprovalRetractedAt *time.Time    `db:"approval_retracted_at" json:"approval_retracted_at,omitempty"`
}

// RequestDetail enriches Request with student and program names for
// listing views.
type RequestDetail struct {
	Request
	StudentEmail string `db:"student_email" json:"student_email"`
	StudentName  string `db:"student_name" json:"student_name"`
	ProgramName  string `db:"program_name" json:"program_name"`
}
