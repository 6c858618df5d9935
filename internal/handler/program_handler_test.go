package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/license-exception-api/internal/middleware"
	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/service"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type programServiceMock struct {
	listResp       []models.StudyProgram
	detailResp     *models.ProgramDetail
	createResp     *models.StudyProgram
	assignResp     *models.Approver
	assignErr      error
	lastProgram    string
	lastAssign     service.AssignApproverRequest
	lastApproverID string
	lastActive     bool
	setCalled      bool
}

func (m *programServiceMock) List(ctx context.Context) ([]models.StudyProgram, error) {
	return m.listResp, nil
}

func (m *programServiceMock) GetDetail(ctx context.Context, id string) (*models.ProgramDetail, error) {
	if m.detailResp == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "study program not found")
	}
	return m.detailResp, nil
}

func (m *programServiceMock) Create(ctx context.Context, actor models.Actor, req service.CreateProgramRequest) (*models.StudyProgram, error) {
	return m.createResp, nil
}

func (m *programServiceMock) AssignApprover(ctx context.Context, actor models.Actor, programID string, req service.AssignApproverRequest) (*models.Approver, error) {
	m.lastProgram = programID
	m.lastAssign = req
	return m.assignResp, m.assignErr
}

func (m *programServiceMock) RemoveApprover(ctx context.Context, actor models.Actor, approverID string) error {
	m.lastApproverID = approverID
	return nil
}

func (m *programServiceMock) SetApproverActive(ctx context.Context, actor models.Actor, approverID string, active bool) error {
	m.setCalled = true
	m.lastApproverID = approverID
	m.lastActive = active
	return nil
}

func newProgramTestContext(t *testing.T, method, url string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-admin", Email: "admin@example.com", Role: models.RoleAdmin})
	return c, w
}

func TestProgramHandlerList(t *testing.T) {
	mockSvc := &programServiceMock{listResp: []models.StudyProgram{{ID: "p-1", Name: "Informatics"}}}
	handler := NewProgramHandler(mockSvc)

	c, w := newProgramTestContext(t, http.MethodGet, "/programs", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Informatics")
}

func TestProgramHandlerGetNotFound(t *testing.T) {
	handler := NewProgramHandler(&programServiceMock{})

	c, w := newProgramTestContext(t, http.MethodGet, "/programs/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgramHandlerAssignApprover(t *testing.T) {
	mockSvc := &programServiceMock{assignResp: &models.Approver{ID: "appr-1", StudyProgramID: "p-1", Active: true}}
	handler := NewProgramHandler(mockSvc)

	c, w := newProgramTestContext(t, http.MethodPost, "/programs/p-1/approvers", []byte(`{"email":"new@example.com"}`))
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.AssignApprover(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p-1", mockSvc.lastProgram)
	assert.Equal(t, "new@example.com", mockSvc.lastAssign.Email)
}

func TestProgramHandlerAssignApproverConflict(t *testing.T) {
	mockSvc := &programServiceMock{assignErr: appErrors.Clone(appErrors.ErrConflict, "user is already an approver for this program")}
	handler := NewProgramHandler(mockSvc)

	c, w := newProgramTestContext(t, http.MethodPost, "/programs/p-1/approvers", []byte(`{"email":"dup@example.com"}`))
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.AssignApprover(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestProgramHandlerSetApproverActive(t *testing.T) {
	mockSvc := &programServiceMock{}
	handler := NewProgramHandler(mockSvc)

	c, w := newProgramTestContext(t, http.MethodPatch, "/programs/approvers/appr-1?active=false", nil)
	c.Params = gin.Params{{Key: "approverId", Value: "appr-1"}}

	handler.SetApproverActive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.setCalled)
	assert.Equal(t, "appr-1", mockSvc.lastApproverID)
	assert.False(t, mockSvc.lastActive)
}

func TestProgramHandlerSetApproverActiveBadFlag(t *testing.T) {
	mockSvc := &programServiceMock{}
	handler := NewProgramHandler(mockSvc)

	c, w := newProgramTestContext(t, http.MethodPatch, "/programs/approvers/appr-1?active=maybe", nil)
	c.Params = gin.Params{{Key: "approverId", Value: "appr-1"}}

	handler.SetApproverActive(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.setCalled)
}
