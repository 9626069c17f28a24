package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "tradegate/pkg/domain"
	audit "tradegate/pkg/platform/audit"
	txcontext "tradegate/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. Append writes both the queryable
// audit_events row and an outbox row so a relay can forward the event.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL audit store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// outboxPayload is the JSON structure forwarded by the outbox relay.
type outboxPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Append records the event and its outbox entry in one transaction unless
// the caller already runs inside one.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if _, ok := txcontext.From(ctx); ok {
		return s.append(ctx, event)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.append(txcontext.WithTx(ctx, tx), event)
	})
}

func (s *Store) append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		uid := uuid.UUID(event.UserID)
		userID = &uid
	}

	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, user_id, subject, action,
			decision, reason, detail, email, request_id, device
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		eventID, string(category), event.Timestamp, userID, event.Subject, event.Action,
		event.Decision, event.Reason, event.Detail, event.Email, event.RequestID, event.Device,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	if userID != nil {
		payload.UserID = userID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.execer(ctx).Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), "audit", eventID.String(), event.Action, payloadBytes, time.Now())
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByUser returns a user's events oldest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	rows, err := s.execer(ctx).Query(ctx, `
		SELECT category, timestamp, subject, action, decision, reason,
		       detail, email, request_id, device
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp ASC
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(&category, &e.Timestamp, &e.Subject, &e.Action, &e.Decision,
			&e.Reason, &e.Detail, &e.Email, &e.RequestID, &e.Device); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.UserID = userID
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Schema is the DDL the store expects. Applied by migrations in deployment and
// directly by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	user_id     UUID,
	subject     TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	device      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_user_idx ON audit_events (user_id, timestamp);
CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ
);
`
