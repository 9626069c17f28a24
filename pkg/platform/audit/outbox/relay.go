// Package outbox forwards audit outbox rows written by the PostgreSQL audit
// store to the event bus.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Publisher produces an already-addressed event.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Relay polls unprocessed outbox rows and publishes them in creation order.
// Rows are claimed with SKIP LOCKED and marked processed only after their
// publish succeeded.
type Relay struct {
	pool      *pgxpool.Pool
	publisher Publisher
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRelay creates a relay publishing to topic.
func NewRelay(pool *pgxpool.Pool, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		pool:      pool,
		publisher: publisher,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
		}
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type row struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

// ProcessBatch relays up to one batch and returns how many rows it marked
// processed. A publish failure stops the batch; earlier rows stay committed.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var (
		processed  int
		publishErr error
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_id, payload
			FROM outbox
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, r.batchSize)
		if err != nil {
			return fmt.Errorf("query outbox: %w", err)
		}
		batch, err := pgx.CollectRows(rows, func(rs pgx.CollectableRow) (row, error) {
			var out row
			err := rs.Scan(&out.id, &out.aggregateID, &out.payload)
			return out, err
		})
		if err != nil {
			return fmt.Errorf("scan outbox: %w", err)
		}

		var done []uuid.UUID
		for _, entry := range batch {
			if err := r.publisher.Publish(ctx, r.topic, entry.aggregateID, json.RawMessage(entry.payload)); err != nil {
				publishErr = fmt.Errorf("publish outbox entry %s: %w", entry.id, err)
				break
			}
			done = append(done, entry.id)
		}
		if len(done) > 0 {
			if _, err := tx.Exec(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = ANY($1)`, done); err != nil {
				return fmt.Errorf("mark outbox processed: %w", err)
			}
		}
		processed = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, publishErr
}

// Pending counts rows not yet relayed.
func (r *Relay) Pending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE processed_at IS NULL`).Scan(&n)
	return n, err
}
