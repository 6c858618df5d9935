package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/pkg/export"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type auditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
	ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportArchive interface {
	Save(filename string, data []byte) (string, error)
}

// ExportFormat selects the audit export rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered export document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

var auditExportHeaders = []string{"id", "timestamp", "user_id", "user_email", "role", "action", "request_id", "study_program_id", "details"}

// AuditService exposes the append-only event ledger: direct appends for
// callers that bypass the workflow services, the admin browser and the
// export download.
type AuditService struct {
	repo    auditRepository
	csv     csvRenderer
	pdf     pdfRenderer
	archive exportArchive
	logger  *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &AuditService{repo: repo, csv: csv, pdf: pdf, logger: logger}
}

// WithArchive enables keeping a disk copy of every generated export.
func (s *AuditService) WithArchive(archive exportArchive) *AuditService {
	s.archive = archive
	return s
}

// Append records a single event.
func (s *AuditService) Append(ctx context.Context, entry *models.AuditLog) error {
	if entry.Action == "" {
		return appErrors.Clone(appErrors.ErrValidation, "audit action is required")
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append audit entry")
	}
	return nil
}

// List returns matching entries, newest first, capped at 500 unless the
// filter narrows it further.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return logs, nil
}

// Export renders the full filtered trail in chronological order.
func (s *AuditService) Export(ctx context.Context, filter models.AuditFilter, format ExportFormat) (*ExportResult, error) {
	logs, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit entries")
	}

	dataset := export.Dataset{Headers: auditExportHeaders, Rows: make([]map[string]string, 0, len(logs))}
	for _, entry := range logs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":               entry.ID,
			"timestamp":        entry.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			"user_id":          stringValue(entry.UserID),
			"user_email":       entry.UserEmail,
			"role":             entry.Role,
			"action":           entry.Action,
			"request_id":       stringValue(entry.RequestID),
			"study_program_id": stringValue(entry.StudyProgramID),
			"details":          stringValue(entry.Details),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	var result *ExportResult
	switch format {
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Audit Trail")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit pdf")
		}
		result = &ExportResult{
			FileName:    fmt.Sprintf("audit-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}
	case ExportFormatCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit csv")
		}
		result = &ExportResult{
			FileName:    fmt.Sprintf("audit-%s.csv", stamp),
			ContentType: "text/csv; charset=utf-8",
			Content:     content,
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	if s.archive != nil {
		// Archival is best effort, the download still goes through.
		if _, err := s.archive.Save(result.FileName, result.Content); err != nil {
			s.logger.Warn("failed to archive export", zap.String("file", result.FileName), zap.Error(err))
		}
	}

	return result, nil
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
