package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/license-exception-api/internal/models"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type programRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudyProgram, error)
	List(ctx context.Context) ([]models.StudyProgram, error)
	ListApprovers(ctx context.Context, programID string) ([]models.ApproverDetail, error)
	CountActiveApprovers(ctx context.Context, programID string) (int, error)
	ActiveProgramIDsForUser(ctx context.Context, userID string) ([]string, error)
	FindActiveApproversByUser(ctx context.Context, userID string) ([]models.Approver, error)
	FindApproverByID(ctx context.Context, id string) (*models.Approver, error)
	Create(ctx context.Context, program *models.StudyProgram, audit *models.AuditLog) (bool, error)
	CreateApprover(ctx context.Context, approver *models.Approver, audit *models.AuditLog) (bool, error)
	DeleteApprover(ctx context.Context, id string, audit *models.AuditLog) error
	SetApproverActive(ctx context.Context, id string, active bool, audit *models.AuditLog) error
}

type programUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
}

// CreateProgramRequest describes program creation payload.
type CreateProgramRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description,omitempty"`
	ReminderDays *int    `json:"reminder_days,omitempty" validate:"omitempty,min=1"`
	ExpiryDays   *int    `json:"expiry_days,omitempty" validate:"omitempty,min=1"`
}

// AssignApproverRequest describes approver assignment payload. The user
// is resolved by email and created on the fly when unknown.
type AssignApproverRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	ExtraScope *string `json:"extra_scope,omitempty"`
}

const programCachePrefix = "programs:"

// ProgramService is the program directory: a read-mostly registry of
// study programs, their reminder/expiry windows and approver rosters.
type ProgramService struct {
	repo      programRepository
	users     programUserRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	defaultExpiryDays   int
	defaultReminderDays int
}

// NewProgramService constructs a ProgramService.
func NewProgramService(repo programRepository, users programUserRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaultExpiryDays, defaultReminderDays int) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultExpiryDays <= 0 {
		defaultExpiryDays = 10
	}
	if defaultReminderDays <= 0 {
		defaultReminderDays = 8
	}
	return &ProgramService{
		repo:                repo,
		users:               users,
		cache:               cache,
		validator:           validate,
		logger:              logger,
		defaultExpiryDays:   defaultExpiryDays,
		defaultReminderDays: defaultReminderDays,
	}
}

// Get returns a single program.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.StudyProgram, error) {
	key := programCachePrefix + id
	if s.cache.Enabled() {
		var cached models.StudyProgram
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study program")
	}
	if s.cache.Enabled() {
		s.cache.Set(ctx, key, program)
	}
	return program, nil
}

// List returns all programs ordered by name.
func (s *ProgramService) List(ctx context.Context) ([]models.StudyProgram, error) {
	key := programCachePrefix + "all"
	if s.cache.Enabled() {
		var cached []models.StudyProgram
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}
	programs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list study programs")
	}
	if s.cache.Enabled() {
		s.cache.Set(ctx, key, programs)
	}
	return programs, nil
}

// GetDetail returns a program with its approver roster.
func (s *ProgramService) GetDetail(ctx context.Context, id string) (*models.ProgramDetail, error) {
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	approvers, err := s.repo.ListApprovers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvers")
	}
	return &models.ProgramDetail{StudyProgram: *program, Approvers: approvers}, nil
}

// ActiveApproverCount reports how many active approvers a program has.
// Zero means new requests for the program auto-approve.
func (s *ProgramService) ActiveApproverCount(ctx context.Context, programID string) (int, error) {
	if _, err := s.Get(ctx, programID); err != nil {
		return 0, err
	}
	count, err := s.repo.CountActiveApprovers(ctx, programID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvers")
	}
	return count, nil
}

// ActiveApproverProgramIDs returns the programs a user may decide
// requests for.
func (s *ProgramService) ActiveApproverProgramIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.ActiveProgramIDsForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve approver programs")
	}
	return ids, nil
}

// ExpiryWindow returns the program's expiry window in days, falling
// back to the configured default when unset.
func (s *ProgramService) ExpiryWindow(ctx context.Context, programID string) (int, error) {
	program, err := s.Get(ctx, programID)
	if err != nil {
		return 0, err
	}
	if program.ExpiryDays != nil && *program.ExpiryDays > 0 {
		return *program.ExpiryDays, nil
	}
	return s.defaultExpiryDays, nil
}

// ReminderWindow returns the program's reminder window in days, falling
// back to the configured default when unset.
func (s *ProgramService) ReminderWindow(ctx context.Context, programID string) (int, error) {
	program, err := s.Get(ctx, programID)
	if err != nil {
		return 0, err
	}
	if program.ReminderDays != nil && *program.ReminderDays > 0 {
		return *program.ReminderDays, nil
	}
	return s.defaultReminderDays, nil
}

// Create registers a new study program.
func (s *ProgramService) Create(ctx context.Context, actor models.Actor, req CreateProgramRequest) (*models.StudyProgram, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program name is required")
	}

	program := &models.StudyProgram{
		Name:         name,
		Description:  trimmedOrNil(req.Description),
		ReminderDays: req.ReminderDays,
		ExpiryDays:   req.ExpiryDays,
	}
	audit := auditEntryFor(actor, models.AuditActionProgramCreate, &name)
	created, err := s.repo.Create(ctx, program, audit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create study program")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a study program with this name already exists")
	}
	s.invalidateCache(ctx)
	return program, nil
}

// AssignApprover binds a user (created on the fly when unknown) to a
// program. Duplicate assignment is a Conflict.
func (s *ProgramService) AssignApprover(ctx context.Context, actor models.Actor, programID string, req AssignApproverRequest) (*models.Approver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approver payload")
	}
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
		}
		user = &models.User{ID: uuid.NewString(), Email: email, Role: models.RoleApprover, Active: true}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approver user")
		}
	} else if user.Role != models.RoleApprover && user.Role != models.RoleAdmin {
		if err := s.users.UpdateRole(ctx, user.ID, models.RoleApprover); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user role")
		}
	}

	approver := &models.Approver{
		UserID:         user.ID,
		StudyProgramID: programID,
		Active:         true,
		ExtraScope:     trimmedOrNil(req.ExtraScope),
	}
	audit := auditEntryFor(actor, models.AuditActionApproverAssign, &email)
	created, err := s.repo.CreateApprover(ctx, approver, audit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign approver")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already an approver for this program")
	}
	s.invalidateCache(ctx)
	return approver, nil
}

// RemoveApprover deletes an approver binding.
func (s *ProgramService) RemoveApprover(ctx context.Context, actor models.Actor, approverID string) error {
	approver, err := s.repo.FindApproverByID(ctx, approverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "approver not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approver")
	}
	audit := auditEntryFor(actor, models.AuditActionApproverRemove, nil)
	audit.StudyProgramID = &approver.StudyProgramID
	if err := s.repo.DeleteApprover(ctx, approverID, audit); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove approver")
	}
	s.invalidateCache(ctx)
	return nil
}

// SetApproverActive toggles an approver binding's active flag.
func (s *ProgramService) SetApproverActive(ctx context.Context, actor models.Actor, approverID string, active bool) error {
	approver, err := s.repo.FindApproverByID(ctx, approverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "approver not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approver")
	}
	details := "deactivated"
	if active {
		details = "activated"
	}
	audit := auditEntryFor(actor, models.AuditActionApproverUpdate, &details)
	audit.StudyProgramID = &approver.StudyProgramID
	if err := s.repo.SetApproverActive(ctx, approverID, active, audit); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update approver")
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *ProgramService) invalidateCache(ctx context.Context) {
	if s.cache.Enabled() {
		s.cache.Invalidate(ctx, programCachePrefix+"*")
	}
}

func auditEntryFor(actor models.Actor, action string, details *string) *models.AuditLog {
	userID := actor.UserID
	return &models.AuditLog{
		Timestamp: time.Now().UTC(),
		UserID:    &userID,
		UserEmail: actor.Email,
		Role:      strings.ToLower(string(actor.Role)),
		Action:    action,
		Details:   details,
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
