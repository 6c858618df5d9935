package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/license-exception-api/internal/models"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type requestRepository interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
	Create(ctx context.Context, request *models.Request, audit *models.AuditLog) error
	ListByUser(ctx context.Context, userID string) ([]models.RequestDetail, error)
	ListPendingForApprover(ctx context.Context, userID string) ([]models.RequestDetail, error)
}

type programDirectory interface {
	Get(ctx context.Context, id string) (*models.StudyProgram, error)
	ActiveApproverCount(ctx context.Context, programID string) (int, error)
	ExpiryWindow(ctx context.Context, programID string) (int, error)
}

// CreateRequestRequest describes a request submission. Both
// confirmations must be checked by the student.
type CreateRequestRequest struct {
	StudyProgramID  string `json:"study_program_id" validate:"required"`
	HasValidLicense bool   `json:"has_valid_license"`
	ReadGuidelines  bool   `json:"read_guidelines"`
}

// RequestService owns request creation and the read side of the
// lifecycle. Terminal transitions happen in ApprovalService and
// SweeperService.
type RequestService struct {
	repo      requestRepository
	programs  programDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestRepository, programs programDirectory, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, programs: programs, validator: validate, logger: logger}
}

// Create submits a new exception request. When the target program has
// no active approvers the request is approved immediately and the audit
// entry is marked auto-approved; otherwise it starts out pending. The
// request row and its audit entry commit atomically.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, req CreateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !req.HasValidLicense || !req.ReadGuidelines {
		return nil, appErrors.Clone(appErrors.ErrValidation, "both confirmations are required")
	}

	if _, err := s.programs.Get(ctx, req.StudyProgramID); err != nil {
		return nil, err
	}
	approverCount, err := s.programs.ActiveApproverCount(ctx, req.StudyProgramID)
	if err != nil {
		return nil, err
	}
	expiryDays, err := s.programs.ExpiryWindow(ctx, req.StudyProgramID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, expiryDays)
	status := models.StatusPending
	if approverCount == 0 {
		status = models.StatusApproved
	}

	request := &models.Request{
		UserID:         actor.UserID,
		StudyProgramID: req.StudyProgramID,
		Status:         status,
		SubmittedAt:    now,
		ExpiresAt:      &expiresAt,
	}

	audit := auditEntryFor(actor, models.AuditActionRequestCreate, nil)
	if approverCount == 0 {
		details := models.AuditDetailsAutoApproved
		audit.Details = &details
	}

	if err := s.repo.Create(ctx, request, audit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return request, nil
}

// ListForUser returns the student's own requests, newest first.
func (s *RequestService) ListForUser(ctx context.Context, userID string) ([]models.RequestDetail, error) {
	requests, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ListPendingForApprover returns the approver's queue: pending requests
// for programs where the user is an active approver, oldest first.
func (s *RequestService) ListPendingForApprover(ctx context.Context, userID string) ([]models.RequestDetail, error) {
	requests, err := s.repo.ListPendingForApprover(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}
