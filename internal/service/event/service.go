package event

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/pkg/logger"
)

// Emitter records care events in the outbox of the caller's unit of work,
// so an event commits or rolls back with the mutation that produced it.
type Emitter struct {
	logger *logger.Logger
	now    func() time.Time
}

func NewEmitter(logger *logger.Logger) *Emitter {
	return &Emitter{logger: logger, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, q repository.EventQueue, eventType string, payload interface{}) error {
	evt, err := model.NewOutboxEvent(eventType, payload, e.now().UTC())
	if err != nil {
		return err
	}

	if err := q.Enqueue(ctx, evt); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", eventType, err)
	}

	e.logger.Debug("care event enqueued", "event_id", evt.ID.String(), "event_type", eventType)
	return nil
}
