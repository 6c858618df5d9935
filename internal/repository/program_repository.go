package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/license-exception-api/internal/models"
)

// ProgramRepository handles persistence of study programs and their
// approver rosters.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = `id, name, description, reminder_days, expiry_days, created_at`

// FindByID returns a study program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.StudyProgram, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_programs WHERE id = $1`, programColumns)
	var program models.StudyProgram
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// List returns all study programs ordered by name.
func (r *ProgramRepository) List(ctx context.Context) ([]models.StudyProgram, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_programs ORDER BY name ASC`, programColumns)
	var programs []models.StudyProgram
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list study programs: %w", err)
	}
	return programs, nil
}

// ListApprovers returns the full approver roster for a program with
// user identity attached.
func (r *ProgramRepository) ListApprovers(ctx context.Context, programID string) ([]models.ApproverDetail, error) {
	const query = `SELECT a.id, a.user_id, a.study_program_id, a.active, a.extra_scope, a.created_at,
        u.email AS user_email, u.full_name AS user_name
        FROM approvers a
        JOIN users u ON u.id = a.user_id
        WHERE a.study_program_id = $1
        ORDER BY a.created_at ASC`
	var approvers []models.ApproverDetail
	if err := r.db.SelectContext(ctx, &approvers, query, programID); err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	return approvers, nil
}

// CountActiveApprovers counts active approver rows for a program. The
// result decides whether new requests auto-approve.
func (r *ProgramRepository) CountActiveApprovers(ctx context.Context, programID string) (int, error) {
	const query = `SELECT COUNT(*) FROM approvers WHERE study_program_id = $1 AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, programID); err != nil {
		return 0, fmt.Errorf("count active approvers: %w", err)
	}
	return count, nil
}

// ActiveProgramIDsForUser returns the programs for which the user is an
// active approver.
func (r *ProgramRepository) ActiveProgramIDsForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT study_program_id FROM approvers WHERE user_id = $1 AND active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list approver programs: %w", err)
	}
	return ids, nil
}

// FindActiveApproversByUser returns the user's active approver rows
// across all programs.
func (r *ProgramRepository) FindActiveApproversByUser(ctx context.Context, userID string) ([]models.Approver, error) {
	const query = `SELECT id, user_id, study_program_id, active, extra_scope, created_at
        FROM approvers WHERE user_id = $1 AND active = TRUE ORDER BY created_at ASC`
	var approvers []models.Approver
	if err := r.db.SelectContext(ctx, &approvers, query, userID); err != nil {
		return nil, fmt.Errorf("find active approvers: %w", err)
	}
	return approvers, nil
}

// FindApproverByID returns a single approver row.
func (r *ProgramRepository) FindApproverByID(ctx context.Context, id string) (*models.Approver, error) {
	const query = `SELECT id, user_id, study_program_id, active, extra_scope, created_at FROM approvers WHERE id = $1`
	var approver models.Approver
	if err := r.db.GetContext(ctx, &approver, query, id); err != nil {
		return nil, err
	}
	return &approver, nil
}

// Create persists a new study program together with its audit entry.
// It returns false without error when the name is already taken; the
// unique constraint makes the check race-free.
func (r *ProgramRepository) Create(ctx context.Context, program *models.StudyProgram, audit *models.AuditLog) (bool, error) {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create program: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO study_programs (id, name, description, reminder_days, expiry_days, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (name) DO NOTHING RETURNING id`
	var insertedID string
	err = tx.QueryRowxContext(ctx, query,
		program.ID, program.Name, program.Description, program.ReminderDays, program.ExpiryDays, program.CreatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create study program: %w", err)
	}

	audit.StudyProgramID = &program.ID
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create program: %w", err)
	}
	committed = true
	return true, nil
}

// CreateApprover inserts an approver binding and its audit entry. It
// returns false without error when the (user, program) pair already
// exists; the unique constraint makes the check race-free.
func (r *ProgramRepository) CreateApprover(ctx context.Context, approver *models.Approver, audit *models.AuditLog) (bool, error) {
	if approver.ID == "" {
		approver.ID = uuid.NewString()
	}
	if approver.CreatedAt.IsZero() {
		approver.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create approver: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO approvers (id, user_id, study_program_id, active, extra_scope, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, study_program_id) DO NOTHING RETURNING id`
	var insertedID string
	err = tx.QueryRowxContext(ctx, query,
		approver.ID, approver.UserID, approver.StudyProgramID, approver.Active, approver.ExtraScope, approver.CreatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create approver: %w", err)
	}

	audit.StudyProgramID = &approver.StudyProgramID
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create approver: %w", err)
	}
	committed = true
	return true, nil
}

// DeleteApprover removes an approver binding and records the removal.
func (r *ProgramRepository) DeleteApprover(ctx context.Context, id string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete approver: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM approvers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete approver: %w", err)
	}
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete approver: %w", err)
	}
	committed = true
	return nil
}

// SetApproverActive toggles the active flag and records the change.
func (r *ProgramRepository) SetApproverActive(ctx context.Context, id string, active bool, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update approver: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE approvers SET active = $2 WHERE id = $1`, id, active); err != nil {
		return fmt.Errorf("update approver: %w", err)
	}
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update approver: %w", err)
	}
	committed = true
	return nil
}
