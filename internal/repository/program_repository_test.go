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

func newProgramRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProgramRepositoryList(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "reminder_days", "expiry_days", "created_at"}).
		AddRow("p-1", "Informatics", nil, 8, 10, time.Now()).
		AddRow("p-2", "Mechanical Engineering", nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, reminder_days, expiry_days, created_at FROM study_programs ORDER BY name ASC")).
		WillReturnRows(rows)

	programs, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, programs, 2)
	assert.Equal(t, "Informatics", programs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCountActiveApprovers(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approvers WHERE study_program_id = $1 AND active = TRUE")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountActiveApprovers(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO study_programs").
		WithArgs(sqlmock.AnyArg(), "Informatics", nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	program := &models.StudyProgram{Name: "Informatics"}
	created, err := repo.Create(context.Background(), program, &models.AuditLog{Action: models.AuditActionProgramCreate})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, program.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateDuplicateName(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO study_programs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	program := &models.StudyProgram{Name: "Informatics"}
	created, err := repo.Create(context.Background(), program, &models.AuditLog{Action: models.AuditActionProgramCreate})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateApprover(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO approvers").
		WithArgs(sqlmock.AnyArg(), "u-1", "p-1", true, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("appr-1"))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	approver := &models.Approver{UserID: "u-1", StudyProgramID: "p-1", Active: true}
	created, err := repo.CreateApprover(context.Background(), approver, &models.AuditLog{Action: models.AuditActionApproverAssign})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryCreateApproverDuplicate(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO approvers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	approver := &models.Approver{UserID: "u-1", StudyProgramID: "p-1", Active: true}
	created, err := repo.CreateApprover(context.Background(), approver, &models.AuditLog{Action: models.AuditActionApproverAssign})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
