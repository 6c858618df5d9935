package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/license-exception-api/internal/models"
)

// AuditRepository handles the append-only audit ledger. Rows are never
// updated or deleted.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditInsertQuery = `INSERT INTO audit_logs (id, timestamp, user_id, user_email, role, action, request_id, study_program_id, details)
        VALUES (:id, :timestamp, :user_id, :user_email, :role, :action, :request_id, :study_program_id, :details)`

// Append writes a single audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	prepareAuditEntry(entry)
	if _, err := r.db.NamedExecContext(ctx, auditInsertQuery, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// appendAuditTx writes an audit entry inside an open transaction so it
// commits or aborts together with the state change it describes.
func appendAuditTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditLog) error {
	prepareAuditEntry(entry)
	if _, err := tx.NamedExecContext(ctx, auditInsertQuery, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func prepareAuditEntry(entry *models.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	query, args := buildAuditQuery(filter, "ORDER BY timestamp DESC")
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// ListForExport returns all matching entries in chronological order.
func (r *AuditRepository) ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	query, args := buildAuditQuery(filter, "ORDER BY timestamp ASC")
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list audit logs for export: %w", err)
	}
	return logs, nil
}

func buildAuditQuery(filter models.AuditFilter, orderBy string) (string, []interface{}) {
	base := `SELECT id, timestamp, user_id, user_email, role, action, request_id, study_program_id, details FROM audit_logs`
	var conditions []string
	var args []interface{}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)+1))
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)+1))
		args = append(args, filter.To.UTC())
	}
	if filter.ActionContains != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", len(args)+1))
		args = append(args, "%"+filter.ActionContains+"%")
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.EmailContains != "" {
		conditions = append(conditions, fmt.Sprintf("user_email LIKE $%d", len(args)+1))
		args = append(args, "%"+filter.EmailContains+"%")
	}
	if filter.RequestID != "" {
		conditions = append(conditions, fmt.Sprintf("request_id = $%d", len(args)+1))
		args = append(args, filter.RequestID)
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " " + orderBy
	return query, args
}
