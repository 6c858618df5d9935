package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/license-exception-api/internal/models"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
)

type sweeperRepository interface {
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error)
	Expire(ctx context.Context, id string, audit *models.AuditLog) (bool, error)
}

// SweeperService expires stale pending requests. Each request is
// transitioned in its own transaction with a conditional write, so a
// request decided between scan and write is skipped silently and a
// failed row leaves the rest of the sweep intact.
type SweeperService struct {
	repo      sweeperRepository
	metrics   *MetricsService
	logger    *zap.Logger
	batchSize int
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(repo sweeperRepository, metrics *MetricsService, logger *zap.Logger, batchSize int) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweeperService{repo: repo, metrics: metrics, logger: logger, batchSize: batchSize}
}

// Sweep runs one expiry pass. Errors are returned for the runner to log
// and retry next interval; they never abort rows already committed.
func (s *SweeperService) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	ids, err := s.repo.ListDueForExpiry(ctx, now, s.batchSize)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan for expired requests")
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(len(ids))
	}
	if len(ids) == 0 {
		return nil
	}

	expired := 0
	var lastErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		audit := &models.AuditLog{
			Timestamp: now,
			Role:      models.RoleSystem,
			Action:    models.AuditActionRequestExpire,
		}
		ok, err := s.repo.Expire(ctx, id, audit)
		if err != nil {
			s.logger.Warn("failed to expire request, will retry next sweep",
				zap.String("request_id", id),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		s.logger.Info("expired stale pending requests", zap.Int("count", expired))
		if s.metrics != nil {
			s.metrics.AddExpired(expired)
		}
	}
	return lastErr
}

// Remind is declared by the workflow contract, but the notification
// trigger and content are still an open product decision. It fails
// loudly rather than pretending to deliver anything.
func (s *SweeperService) Remind(ctx context.Context) error {
	return appErrors.Clone(appErrors.ErrNotImplemented, "reminder delivery is not implemented")
}
