package models

import "time"

// Audit action codes written by the workflow core.
const (
	AuditActionLogin           = "user.login"
	AuditActionRequestCreate   = "request.create"
	AuditActionRequestExpire   = "request.expire"
	AuditActionApprovalApprove = "approval.approve"
	AuditActionApprovalReject  = "approval.reject"
	AuditActionProgramCreate   = "program.create"
	AuditActionApproverAssign  = "approver.assign"
	AuditActionApproverRemove  = "approver.remove"
	AuditActionApproverUpdate  = "approver.update"
)

// AuditDetailsAutoApproved marks a request.create entry produced by the
// zero-active-approvers auto-approval rule rather than a human decision.
const AuditDetailsAutoApproved = "auto-approved"

// RoleSystem labels audit entries produced by background processes
// rather than an authenticated user.
const RoleSystem = "system"

// AuditLog is an append-only event record. Email and role are captured
// at event time so the trail stays accurate if the user changes later.
// UserID is nil for system-generated entries (expiry sweeps).
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	UserEmail      string    `db:"user_email" json:"user_email"`
	Role           string    `db:"role" json:"role"`
	Action         string    `db:"action" json:"action"`
	RequestID      *string   `db:"request_id" json:"request_id,omitempty"`
	StudyProgramID *string   `db:"study_program_id" json:"study_program_id,omitempty"`
	Details        *string   `db:"details" json:"details,omitempty"`
}

// AuditFilter captures the audit browser's filter criteria. From and To
// are interpreted as day bounds in UTC.
type AuditFilter struct {
	From           *time.Time
	To             *time.Time
	ActionContains string
	Role           string
	EmailContains  string
	RequestID      string
	Limit          int
}
