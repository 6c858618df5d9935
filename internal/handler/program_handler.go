package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/license-exception-api/internal/middleware"
	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/service"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
	"github.com/campuskit/license-exception-api/pkg/response"
)

type programService interface {
	List(ctx context.Context) ([]models.StudyProgram, error)
	GetDetail(ctx context.Context, id string) (*models.ProgramDetail, error)
	Create(ctx context.Context, actor models.Actor, req service.CreateProgramRequest) (*models.StudyProgram, error)
	AssignApprover(ctx context.Context, actor models.Actor, programID string, req service.AssignApproverRequest) (*models.Approver, error)
	RemoveApprover(ctx context.Context, actor models.Actor, approverID string) error
	SetApproverActive(ctx context.Context, actor models.Actor, approverID string, active bool) error
}

// ProgramHandler handles study program administration endpoints.
type ProgramHandler struct {
	service programService
}

// NewProgramHandler creates a new program handler.
func NewProgramHandler(svc programService) *ProgramHandler {
	return &ProgramHandler{service: svc}
}

// List godoc
// @Summary List study programs
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	programs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, programs)
}

// Get godoc
// @Summary Get study program detail
// @Description Program with its approver roster
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	detail, err := h.service.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail)
}

// Create godoc
// @Summary Create study program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.CreateProgramRequest true "Program"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid program payload"))
		return
	}

	program, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, program)
}

// AssignApprover godoc
// @Summary Assign approver
// @Description Assign a user as approver for a study program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.AssignApproverRequest true "Approver"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /programs/{id}/approvers [post]
func (h *ProgramHandler) AssignApprover(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignApproverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approver payload"))
		return
	}

	approver, err := h.service.AssignApprover(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, approver)
}

// RemoveApprover godoc
// @Summary Remove approver
// @Tags Programs
// @Produce json
// @Param approverId path string true "Approver ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /programs/approvers/{approverId} [delete]
func (h *ProgramHandler) RemoveApprover(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.RemoveApprover(c.Request.Context(), actor, c.Param("approverId")); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil)
}

// SetApproverActive godoc
// @Summary Activate or deactivate approver
// @Tags Programs
// @Produce json
// @Param approverId path string true "Approver ID"
// @Param active query bool true "Active flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /programs/approvers/{approverId} [patch]
func (h *ProgramHandler) SetApproverActive(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	active, err := strconv.ParseBool(c.Query("active"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be true or false"))
		return
	}

	if err := h.service.SetApproverActive(c.Request.Context(), actor, c.Param("approverId"), active); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil)
}
