package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

// longest wait between two attempts of the same event
const maxBackoff = time.Hour

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	PublishRPS    float64
	Channel       string
}

func (c OutboxProcessorConfig) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be greater than 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("RetryAttempts must be greater than 0")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("RetryDelay must be greater than 0")
	}
	if c.Channel == "" {
		return fmt.Errorf("Channel is required")
	}
	return nil
}

// OutboxProcessor relays committed care events to the broker. Each poll
// locks a batch with SKIP LOCKED so several relays can run side by side.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	limit := rate.Inf
	if config.PublishRPS > 0 {
		limit = rate.Limit(config.PublishRPS)
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		limiter: rate.NewLimiter(limit, config.BatchSize),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// processEvents relays one batch and returns how many events were
// published.
func (p *OutboxProcessor) processEvents(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		events, err := p.repo.GetPendingEventsWithLock(ctx, tx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

		for _, event := range events {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
			ok, err := p.processEvent(ctx, tx, event)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

// processEvent publishes one event and records the outcome. A publish
// failure is not an error of the batch; only a failed status write is.
func (p *OutboxProcessor) processEvent(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) (bool, error) {
	body, err := json.Marshal(messaging.Envelope{
		ID:        event.ID,
		Type:      event.EventType,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	})
	if err == nil {
		err = p.broker.Publish(ctx, p.config.Channel, body)
	}

	if err != nil {
		status, retryAt := p.nextAttempt(event)
		errStr := err.Error()
		if updateErr := p.repo.UpdateStatusTx(ctx, tx, event.ID, status, &errStr, retryAt); updateErr != nil {
			return false, fmt.Errorf("failed to update event status: %w", updateErr)
		}

		if status == model.OutboxStatusFailed {
			p.metrics.OutboxEventsFailed.Inc()
			p.logger.Error(err, "Giving up on event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempts", event.RetryCount+1)
		} else {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
			p.logger.Warn("Failed to publish event, will retry",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_at", retryAt.Format(time.RFC3339),
				"error", errStr)
		}
		return false, nil
	}

	if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		return false, fmt.Errorf("failed to update event status: %w", err)
	}
	p.metrics.OutboxEventsProcessed.Inc()
	p.metrics.OutboxEventLag.WithLabelValues(event.EventType).Observe(p.now().Sub(event.CreatedAt).Seconds())
	return true, nil
}

// nextAttempt backs off exponentially from RetryDelay and gives up after
// RetryAttempts failed publishes.
func (p *OutboxProcessor) nextAttempt(event *model.OutboxEvent) (model.OutboxStatus, *time.Time) {
	failures := event.RetryCount + 1
	if failures >= p.config.RetryAttempts {
		return model.OutboxStatusFailed, nil
	}

	delay := p.config.RetryDelay
	for i := 0; i < event.RetryCount && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	at := p.now().Add(delay)
	return model.OutboxStatusRetry, &at
}
