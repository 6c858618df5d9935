package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/service"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
	"github.com/campuskit/license-exception-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
	Export(ctx context.Context, filter models.AuditFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// AuditHandler handles audit trail endpoints.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Browse audit trail
// @Description List audit entries, newest first. From and To are YYYY-MM-DD day bounds.
// @Tags Audit
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param action query string false "Action substring"
// @Param role query string false "Actor role"
// @Param email query string false "Actor email substring"
// @Param request_id query string false "Request ID"
// @Param limit query int false "Max entries (default 100, cap 500)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := parseAuditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs)
}

// Export godoc
// @Summary Export audit trail
// @Description Download the filtered audit trail as CSV (default) or PDF
// @Tags Audit
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, err := parseAuditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Export(c.Request.Context(), filter, service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func parseAuditFilter(c *gin.Context) (models.AuditFilter, error) {
	filter := models.AuditFilter{
		ActionContains: c.Query("action"),
		Role:           c.Query("role"),
		EmailContains:  c.Query("email"),
		RequestID:      c.Query("request_id"),
	}

	if raw := c.Query("from"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		filter.From = &day
	}
	if raw := c.Query("to"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		// Inclusive end of day.
		end := day.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}
