package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/license-exception-api/internal/middleware"
	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/service"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
	"github.com/campuskit/license-exception-api/pkg/response"
)

type approvalService interface {
	Decide(ctx context.Context, actor models.Actor, requestID string, req service.DecideRequest) (*models.Approval, error)
	Retract(ctx context.Context, actor models.Actor, requestID string) error
}

// ApprovalHandler handles approval decision endpoints.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler creates a new approval handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Decide godoc
// @Summary Decide a request
// @Description Approve or reject a pending request. A request that already carries
// @Description a decision is left untouched and the call returns 204.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param requestId path string true "Request ID"
// @Param payload body service.DecideRequest true "Decision"
// @Success 201 {object} response.Envelope
// @Success 204 "decision already recorded"
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{requestId} [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}

	approval, err := h.service.Decide(c.Request.Context(), actor, c.Param("requestId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if approval == nil {
		// Another approver got there first.
		response.NoContent(c)
		return
	}

	response.JSON(c, http.StatusCreated, approval)
}

// Retract godoc
// @Summary Retract a decision
// @Description Retracting a recorded decision is not supported
// @Tags Approvals
// @Produce json
// @Param requestId path string true "Request ID"
// @Failure 501 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{requestId} [delete]
func (h *ApprovalHandler) Retract(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Retract(c.Request.Context(), actor, c.Param("requestId")); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil)
}
