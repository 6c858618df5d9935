package models

import "time"

// ApprovalDecision is the outcome recorded for a request.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "APPROVED"
	DecisionRejected ApprovalDecision = "REJECTED"
)

// Valid reports whether the decision is one of the known outcomes.
func (d ApprovalDecision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Approval is the authoritative decision record for a request. The
// request_id column carries a unique constraint so at most one row can
// ever exist per request.
type Approval struct {
	ID         string           `db:"id" json:"id"`
	RequestID  string           `db:"request_id" json:"request_id"`
	ApproverID string           `db:"approver_id" json:"approver_id"`
	Decision   ApprovalDecision `db:"decision" json:"decision"`
	Comment    *string          `db:"comment" json:"comment,omitempty"`
	DecidedAt  time.Time        `db:"decided_at" json:"decided_at"`
}
