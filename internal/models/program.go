package models

import "time"

// StudyProgram is a registry entry students submit requests against.
// Reminder and expiry windows are optional; the workflow falls back to
// configured defaults when unset.
type StudyProgram struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	ReminderDays *int      `db:"reminder_days" json:"reminder_days,omitempty"`
	ExpiryDays   *int      `db:"expiry_days" json:"expiry_days,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Approver binds a user to a study program. The (user_id,
// study_program_id) pair is unique; only active rows grant decision
// authority.
type Approver struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	StudyProgramID string    `db:"study_program_id" json:"study_program_id"`
	Active         bool      `db:"active" json:"active"`
	ExtraScope     *string   `db:"extra_scope" json:"extra_scope,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ApproverDetail enriches Approver with the bound user's identity.
type ApproverDetail struct {
	Approver
	UserEmail string `db:"user_email" json:"user_email"`
	UserName  string `db:"user_name" json:"user_name"`
}

// ProgramDetail enriches StudyProgram with its approver roster.
type ProgramDetail struct {
	StudyProgram
	Approvers []ApproverDetail `json:"approvers"`
}
