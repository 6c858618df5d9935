package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/license-exception-api/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAuditRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{Action: models.AuditActionLogin, UserEmail: "a@example.com", Role: "student"}
	require.NoError(t, repo.Append(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryList(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "timestamp", "user_id", "user_email", "role", "action", "request_id", "study_program_id", "details"}).
		AddRow("l-1", time.Now(), nil, "a@example.com", "student", "request.create", nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, timestamp, user_id, user_email, role, action, request_id, study_program_id, details FROM audit_logs WHERE timestamp >= $1 AND action LIKE $2 ORDER BY timestamp DESC LIMIT 100")).
		WithArgs(from, "%request%").
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), models.AuditFilter{From: &from, ActionContains: "request", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "request.create", logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListForExportIsChronological(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "timestamp", "user_id", "user_email", "role", "action", "request_id", "study_program_id", "details"}).
		AddRow("l-1", time.Now().Add(-time.Hour), nil, "a@example.com", "student", "request.create", nil, nil, nil).
		AddRow("l-2", time.Now(), nil, "b@example.com", "approver", "approval.approve", nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, timestamp, user_id, user_email, role, action, request_id, study_program_id, details FROM audit_logs ORDER BY timestamp ASC")).
		WillReturnRows(rows)

	logs, err := repo.ListForExport(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "l-1", logs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
