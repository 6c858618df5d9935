package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/repository"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type approvalRepoStub struct {
	decided      bool
	decideErr    error
	lastApproval *models.Approval
	lastStatus   models.RequestStatus
	lastAudit    *models.AuditLog
	calls        int
}

func (s *approvalRepoStub) Decide(ctx context.Context, approval *models.Approval, status models.RequestStatus, audit *models.AuditLog) (bool, error) {
	s.calls++
	s.lastApproval = approval
	s.lastStatus = status
	s.lastAudit = audit
	return s.decided, s.decideErr
}

type approverResolverStub struct {
	approvers []models.Approver
}

func (s approverResolverStub) FindActiveApproversByUser(ctx context.Context, userID string) ([]models.Approver, error) {
	return s.approvers, nil
}

type requestReaderStub struct {
	request *models.Request
	err     error
}

func (s requestReaderStub) FindByID(ctx context.Context, id string) (*models.Request, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.request, nil
}

func approverActor() models.Actor {
	return models.Actor{UserID: "u-2", Email: "approver@example.com", Role: models.RoleApprover}
}

func TestApprovalServiceDecideApprove(t *testing.T) {
	repo := &approvalRepoStub{decided: true}
	resolver := approverResolverStub{approvers: []models.Approver{
		{ID: "appr-other", UserID: "u-2", StudyProgramID: "p-2", Active: true},
		{ID: "appr-1", UserID: "u-2", StudyProgramID: "p-1", Active: true},
	}}
	reader := requestReaderStub{request: &models.Request{ID: "r-1", StudyProgramID: "p-1", Status: models.StatusPending}}
	svc := NewApprovalService(repo, resolver, reader, nil)

	approval, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionApproved})
	require.NoError(t, err)
	require.NotNil(t, approval)

	// The membership matching the request's program wins over the
	// first one returned.
	assert.Equal(t, "appr-1", approval.ApproverID)
	assert.Equal(t, models.StatusApproved, repo.lastStatus)
	assert.Equal(t, models.AuditActionApprovalApprove, repo.lastAudit.Action)
	require.NotNil(t, repo.lastAudit.StudyProgramID)
	assert.Equal(t, "p-1", *repo.lastAudit.StudyProgramID)
}

func TestApprovalServiceDecideDuplicateIsSilentNoOp(t *testing.T) {
	repo := &approvalRepoStub{decided: false}
	resolver := approverResolverStub{approvers: []models.Approver{{ID: "appr-1", UserID: "u-2", StudyProgramID: "p-1", Active: true}}}
	reader := requestReaderStub{request: &models.Request{ID: "r-1", StudyProgramID: "p-1", Status: models.StatusPending}}
	svc := NewApprovalService(repo, resolver, reader, nil)

	approval, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionApproved})
	require.NoError(t, err)
	assert.Nil(t, approval)
	assert.Equal(t, 1, repo.calls)
}

func TestApprovalServiceDecideRejectRequiresComment(t *testing.T) {
	repo := &approvalRepoStub{}
	svc := NewApprovalService(repo, approverResolverStub{}, requestReaderStub{}, nil)

	_, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionRejected, Comment: "   "})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Zero(t, repo.calls)
}

func TestApprovalServiceDecideRejectRecordsComment(t *testing.T) {
	repo := &approvalRepoStub{decided: true}
	resolver := approverResolverStub{approvers: []models.Approver{{ID: "appr-1", UserID: "u-2", StudyProgramID: "p-1", Active: true}}}
	reader := requestReaderStub{request: &models.Request{ID: "r-1", StudyProgramID: "p-1", Status: models.StatusPending}}
	svc := NewApprovalService(repo, resolver, reader, nil)

	approval, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionRejected, Comment: "missing paperwork"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, repo.lastStatus)
	assert.Equal(t, models.AuditActionApprovalReject, repo.lastAudit.Action)
	require.NotNil(t, approval.Comment)
	assert.Equal(t, "missing paperwork", *approval.Comment)
}

func TestApprovalServiceDecideForbiddenWithoutMembership(t *testing.T) {
	svc := NewApprovalService(&approvalRepoStub{}, approverResolverStub{}, requestReaderStub{}, nil)

	_, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionApproved})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestApprovalServiceDecideRequestNotFound(t *testing.T) {
	resolver := approverResolverStub{approvers: []models.Approver{{ID: "appr-1", UserID: "u-2", StudyProgramID: "p-1", Active: true}}}
	svc := NewApprovalService(&approvalRepoStub{}, resolver, requestReaderStub{err: sql.ErrNoRows}, nil)

	_, err := svc.Decide(context.Background(), approverActor(), "missing", DecideRequest{Decision: models.DecisionApproved})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestApprovalServiceDecideExpiredRequestConflicts(t *testing.T) {
	repo := &approvalRepoStub{decideErr: fmt.Errorf("decide request r-1: %w", repository.ErrRequestNotPending)}
	resolver := approverResolverStub{approvers: []models.Approver{{ID: "appr-1", UserID: "u-2", StudyProgramID: "p-1", Active: true}}}
	reader := requestReaderStub{request: &models.Request{ID: "r-1", StudyProgramID: "p-1", Status: models.StatusPending}}
	svc := NewApprovalService(repo, resolver, reader, nil)

	_, err := svc.Decide(context.Background(), approverActor(), "r-1", DecideRequest{Decision: models.DecisionApproved})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestApprovalServiceRetractNotImplemented(t *testing.T) {
	svc := NewApprovalService(&approvalRepoStub{}, approverResolverStub{}, requestReaderStub{}, nil)

	err := svc.Retract(context.Background(), approverActor(), "r-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotImplemented.Code, appErr.Code)
}
