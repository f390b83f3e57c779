package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LoadPending(ctx context.Context, limit int) ([]Event, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// Handler executes the compensation described by one event. An error marks
// the event failed; it must not panic.
type Handler interface {
	Compensate(ctx context.Context, e Event) error
}

// Compensator drains pending events on a fixed interval, oldest first, in a
// bounded batch. One attempt per event: success -> processed, any error ->
// failed. Cross-process double execution is tolerated because compensations
// are idempotent at the collaborator boundary.
type Compensator struct {
	log       *slog.Logger
	store     Store
	handler   Handler
	batchSize int
	interval  time.Duration
}

func NewCompensator(log *slog.Logger, store Store, handler Handler) *Compensator {
	return &Compensator{
		log:       log,
		store:     store,
		handler:   handler,
		batchSize: 20,
		interval:  5 * time.Second,
	}
}

func (c *Compensator) Run(ctx context.Context) error {
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("compensator stopping")
			return nil
		case <-t.C:
			c.sweep(ctx)
		}
	}
}

func (c *Compensator) sweep(ctx context.Context) {
	events, err := c.store.LoadPending(ctx, c.batchSize)
	if err != nil {
		c.log.Error("compensator load pending failed", "err", err)
		return
	}

	for _, e := range events {
		if err := c.handler.Compensate(ctx, e); err != nil {
			c.log.Error("compensation failed, event parked for manual intervention",
				"event_id", e.ID, "kind", e.Kind, "err", err)
			if err := c.store.MarkFailed(ctx, e.ID, err.Error()); err != nil {
				c.log.Error("mark failed error", "event_id", e.ID, "err", err)
			}
			continue
		}
		if err := c.store.MarkProcessed(ctx, e.ID); err != nil {
			c.log.Error("mark processed error", "event_id", e.ID, "err", err)
			continue
		}
		c.log.Info("compensation processed", "event_id", e.ID, "kind", e.Kind)
	}
}
