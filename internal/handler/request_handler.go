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

type requestService interface {
	Create(ctx context.Context, actor models.Actor, req service.CreateRequestRequest) (*models.Request, error)
	ListForUser(ctx context.Context, userID string) ([]models.RequestDetail, error)
	ListPendingForApprover(ctx context.Context, userID string) ([]models.RequestDetail, error)
}

// RequestHandler handles exception request endpoints.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Create godoc
// @Summary Submit exception request
// @Description Submit a license exception request for a study program
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestRequest true "Request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// List godoc
// @Summary List own requests
// @Description List the authenticated student's requests, newest first
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListForUser(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests)
}

// ListPending godoc
// @Summary List pending requests
// @Description List pending requests for the programs the approver is assigned to, oldest first
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/pending [get]
func (h *RequestHandler) ListPending(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListPendingForApprover(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests)
}
