package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

// OutboxCleanupWorker purges relayed events once they are older than the
// retention window. Failed events are kept for inspection.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewOutboxCleanupWorker(
	repo repository.OutboxRepository,
	retentionDays int,
	cleanupInterval time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          logger,
		metrics:         metrics,
		now:             time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "Error cleaning up outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "error").Inc()
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	w.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "success").Inc()
	w.metrics.OutboxEventsPurged.Add(float64(rows))

	w.logger.Info("Cleaned up outbox events", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
