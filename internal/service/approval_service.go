package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/repository"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type approvalRepository interface {
	Decide(ctx context.Context, approval *models.Approval, status models.RequestStatus, audit *models.AuditLog) (bool, error)
}

type approverResolver interface {
	FindActiveApproversByUser(ctx context.Context, userID string) ([]models.Approver, error)
}

type requestReader interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
}

// DecideRequest describes a decision payload. A rejection must carry a
// non-blank comment; an approval's comment is optional.
type DecideRequest struct {
	Decision models.ApprovalDecision `json:"decision"`
	Comment  string                  `json:"comment"`
}

// ApprovalService is the decision engine. First decision wins: the
// approvals table's unique request_id constraint arbitrates concurrent
// decisions, and the loser's attempt is absorbed as a silent no-op.
type ApprovalService struct {
	repo      approvalRepository
	approvers approverResolver
	requests  requestReader
	logger    *zap.Logger
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(repo approvalRepository, approvers approverResolver, requests requestReader, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{repo: repo, approvers: approvers, requests: requests, logger: logger}
}

// Decide records the actor's decision on a request. When the request
// already holds a decision the call returns (nil, nil): no error, no
// state change, no audit entry. Note the authorization check only
// requires the actor to be an active approver of some program, not the
// request's program; tightening that scope is a pending product
// decision.
func (s *ApprovalService) Decide(ctx context.Context, actor models.Actor, requestID string, req DecideRequest) (*models.Approval, error) {
	if !req.Decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	comment := strings.TrimSpace(req.Comment)
	if req.Decision == models.DecisionRejected && comment == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required for rejection")
	}

	memberships, err := s.approvers.FindActiveApproversByUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve approver")
	}
	if len(memberships) == 0 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not an approver for any program")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	// Record the membership matching the request's program when one
	// exists so the approval row points at the most specific binding.
	membership := memberships[0]
	for _, m := range memberships {
		if m.StudyProgramID == request.StudyProgramID {
			membership = m
			break
		}
	}

	status := models.StatusApproved
	action := models.AuditActionApprovalApprove
	if req.Decision == models.DecisionRejected {
		status = models.StatusRejected
		action = models.AuditActionApprovalReject
	}

	approval := &models.Approval{
		RequestID:  requestID,
		ApproverID: membership.ID,
		Decision:   req.Decision,
	}
	if comment != "" {
		approval.Comment = &comment
	}

	audit := auditEntryFor(actor, action, approval.Comment)
	audit.StudyProgramID = &request.StudyProgramID

	decided, err := s.repo.Decide(ctx, approval, status, audit)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotPending) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if !decided {
		s.logger.Info("duplicate decision absorbed",
			zap.String("request_id", requestID),
			zap.String("user_id", actor.UserID),
		)
		return nil, nil
	}
	return approval, nil
}

// Retract is declared by the service contract but has no defined
// policy yet. It fails loudly rather than pretending to succeed.
func (s *ApprovalService) Retract(ctx context.Context, actor models.Actor, requestID string) error {
	return appErrors.Clone(appErrors.ErrNotImplemented, "retract is not implemented")
}
