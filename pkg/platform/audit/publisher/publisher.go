// Package publisher fans audit events out to a Store, either inline or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "tradegate/pkg/domain"
	audit "tradegate/pkg/platform/audit"
	"tradegate/pkg/requestcontext"
)

// Publisher writes audit events to a store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithLogger sets the logger used for dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to asynchronous mode. Emit never
// blocks; events are dropped (and logged) when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. Timestamp, category and request id are filled in
// when the caller left them empty.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"user_id", event.UserID,
			)
		}
	}
	return nil
}

// List returns the stored events for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close drains buffered events and stops the background goroutine.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"error", err,
			)
		}
		cancel()
	}
}
