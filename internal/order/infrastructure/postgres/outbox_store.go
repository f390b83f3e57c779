package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msashop/order-service/pkg/outbox"
)

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// Append commits in its own single-statement transaction. The caller invokes
// it when an order-save transaction has already rolled back; this record must
// not share that fate.
func (s *OutboxStore) Append(ctx context.Context, kind string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_events (kind, payload, status, created_at)
		VALUES ($1, $2, 'pending', now())`, kind, payload)
	if err != nil {
		return fmt.Errorf("appending outbox event: %w", err)
	}
	return nil
}

// LoadPending returns the oldest pending events up to limit. No row locking:
// the compensator sweep is single-threaded per process and cross-process
// duplicates are absorbed by idempotent collaborators.
func (s *OutboxStore) LoadPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, payload, status, created_at, processed_at
		FROM outbox_events
		WHERE status='pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading pending events: %w", err)
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.Status, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *OutboxStore) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox_events SET status='processed', processed_at=now() WHERE id=$1`, id)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox_events SET status='failed', processed_at=now(), last_error=$2 WHERE id=$1`, id, errMsg)
	return err
}
