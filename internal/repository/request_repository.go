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

// RequestRepository handles persistence of exception requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, user_id, study_program_id, status, submitted_at, expires_at, approval_retracted_at`

// FindByID returns a request by its ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create persists a new request and its audit entry in one transaction.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request, audit *models.AuditLog) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO requests (id, user_id, study_program_id, status, submitted_at, expires_at)
        VALUES (:id, :user_id, :study_program_id, :status, :submitted_at, :expires_at)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	audit.RequestID = &request.ID
	audit.StudyProgramID = &request.StudyProgramID
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	committed = true
	return nil
}

// ListByUser returns a student's requests, newest submission first.
func (r *RequestRepository) ListByUser(ctx context.Context, userID string) ([]models.RequestDetail, error) {
	const query = `SELECT r.id, r.user_id, r.study_program_id, r.status, r.submitted_at, r.expires_at, r.approval_retracted_at,
        u.email AS student_email, u.full_name AS student_name, p.name AS program_name
        FROM requests r
        JOIN users u ON u.id = r.user_id
        JOIN study_programs p ON p.id = r.study_program_id
        WHERE r.user_id = $1
        ORDER BY r.submitted_at DESC`
	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list requests for user: %w", err)
	}
	return requests, nil
}

// ListPendingForApprover returns pending requests for programs where
// the user is an active approver, oldest submission first.
func (r *RequestRepository) ListPendingForApprover(ctx context.Context, userID string) ([]models.RequestDetail, error) {
	const query = `SELECT r.id, r.user_id, r.study_program_id, r.status, r.submitted_at, r.expires_at, r.approval_retracted_at,
        u.email AS student_email, u.full_name AS student_name, p.name AS program_name
        FROM requests r
        JOIN users u ON u.id = r.user_id
        JOIN study_programs p ON p.id = r.study_program_id
        JOIN approvers a ON a.study_program_id = r.study_program_id AND a.user_id = $1 AND a.active = TRUE
        WHERE r.status = $2
        ORDER BY r.submitted_at ASC`
	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, userID, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ListDueForExpiry returns IDs of pending requests whose expiry moment
// has passed.
func (r *RequestRepository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id FROM requests WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2 ORDER BY expires_at ASC LIMIT $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.StatusPending, now.UTC(), limit); err != nil {
		return nil, fmt.Errorf("list due requests: %w", err)
	}
	return ids, nil
}

// Expire transitions a single request to EXPIRED and appends the audit
// entry in one transaction. The update is conditioned on the row still
// being PENDING at write time; a request decided between scan and write
// is left untouched and the call returns false without error.
func (r *RequestRepository) Expire(ctx context.Context, id string, audit *models.AuditLog) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin expire request: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `UPDATE requests SET status = $2 WHERE id = $1 AND status = $3 RETURNING study_program_id`
	var programID string
	if err := tx.QueryRowxContext(ctx, query, id, models.StatusExpired, models.StatusPending).Scan(&programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("expire request: %w", err)
	}

	audit.RequestID = &id
	audit.StudyProgramID = &programID
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit expire request: %w", err)
	}
	committed = true
	return true, nil
}
