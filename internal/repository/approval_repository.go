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

// ErrRequestNotPending is returned when a decision targets a request
// that already reached a terminal state without holding an Approval
// (an expired request). The transaction is rolled back.
var ErrRequestNotPending = errors.New("request is not pending")

// ApprovalRepository handles decision records. The approvals table
// carries a unique constraint on request_id; first decision wins is a
// property of that constraint, not of application-level checks.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// FindByRequestID returns the decision for a request if one exists.
func (r *ApprovalRepository) FindByRequestID(ctx context.Context, requestID string) (*models.Approval, error) {
	const query = `SELECT id, request_id, approver_id, decision, comment, decided_at FROM approvals WHERE request_id = $1`
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, requestID); err != nil {
		return nil, err
	}
	return &approval, nil
}

// Decide records an approval or rejection: it inserts the Approval,
// moves the request to its terminal status and appends the audit entry,
// all in one transaction. When another decision already holds the
// request's unique slot the insert yields no row, the transaction is
// rolled back and Decide returns (false, nil): the duplicate attempt is
// absorbed with no error, no status change and no audit entry.
func (r *ApprovalRepository) Decide(ctx context.Context, approval *models.Approval, status models.RequestStatus, audit *models.AuditLog) (bool, error) {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.DecidedAt.IsZero() {
		approval.DecidedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin decide: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO approvals (id, request_id, approver_id, decision, comment, decided_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (request_id) DO NOTHING RETURNING id`
	var insertedID string
	err = tx.QueryRowxContext(ctx, insertQuery,
		approval.ID, approval.RequestID, approval.ApproverID, approval.Decision, approval.Comment, approval.DecidedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert approval: %w", err)
	}

	const updateQuery = `UPDATE requests SET status = $2 WHERE id = $1 AND status = $3`
	res, err := tx.ExecContext(ctx, updateQuery, approval.RequestID, status, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return false, fmt.Errorf("decide request %s: %w", approval.RequestID, ErrRequestNotPending)
	}

	audit.RequestID = &approval.RequestID
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit decide: %w", err)
	}
	committed = true
	return true, nil
}
