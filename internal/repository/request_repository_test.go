package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/license-exception-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request := &models.Request{UserID: "u-1", StudyProgramID: "p-1", Status: models.StatusPending}
	audit := &models.AuditLog{Action: models.AuditActionRequestCreate}
	require.NoError(t, repo.Create(context.Background(), request, audit))

	assert.NotEmpty(t, request.ID)
	require.NotNil(t, audit.RequestID)
	assert.Equal(t, request.ID, *audit.RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListDueForExpiry(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("SELECT id FROM requests WHERE status").
		WithArgs(models.StatusPending, sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1").AddRow("r-2"))

	ids, err := repo.ListDueForExpiry(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryExpire(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE requests SET status").
		WithArgs("r-1", models.StatusExpired, models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"study_program_id"}).AddRow("p-1"))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	audit := &models.AuditLog{Action: models.AuditActionRequestExpire, Role: models.RoleSystem}
	expired, err := repo.Expire(context.Background(), "r-1", audit)
	require.NoError(t, err)
	assert.True(t, expired)
	require.NotNil(t, audit.StudyProgramID)
	assert.Equal(t, "p-1", *audit.StudyProgramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryExpireDecidedRowIsSkipped(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	// The row was decided between the sweep's scan and this write: the
	// conditional update matches nothing and the tx rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE requests SET status").
		WithArgs("r-1", models.StatusExpired, models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"study_program_id"}))
	mock.ExpectRollback()

	expired, err := repo.Expire(context.Background(), "r-1", &models.AuditLog{Action: models.AuditActionRequestExpire})
	require.NoError(t, err)
	assert.False(t, expired)
	assert.NoError(t, mock.ExpectationsWereMet())
}
