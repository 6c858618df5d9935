package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/license-exception-api/internal/models"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type authUserRepoStub struct {
	user *models.User
}

func (s authUserRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

type auditAppenderStub struct {
	entries []*models.AuditLog
}

func (s *auditAppenderStub) Append(ctx context.Context, entry *models.AuditLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func newAuthService(t *testing.T, audit auditAppender) (*AuthService, *models.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "u-1",
		Email:        "student@example.com",
		PasswordHash: string(hash),
		FullName:     "Student A",
		Role:         models.RoleStudent,
		Active:       true,
	}
	svc := NewAuthService(authUserRepoStub{user: user}, audit, nil, nil, AuthConfig{Secret: "test-secret"})
	return svc, user
}

func TestAuthServiceLogin(t *testing.T) {
	audit := &auditAppenderStub{}
	svc, user := newAuthService(t, audit)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audit.entries[0].Action)
	assert.Equal(t, "student", audit.entries[0].Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, user.Email, claims.Actor().Email)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, user := newAuthService(t, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc, _ := newAuthService(t, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: "u-1", Email: "x@example.com", PasswordHash: string(hash), Role: models.RoleStudent}
	svc := NewAuthService(authUserRepoStub{user: user}, nil, nil, nil, AuthConfig{Secret: "test-secret"})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthService(t, nil)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
