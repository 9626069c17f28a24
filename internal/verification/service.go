package verification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tradegate/internal/verification/metrics"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/audit"
	"tradegate/pkg/platform/sentinel"
	"tradegate/pkg/requestcontext"
)

// Store persists one session per user. Update must serialize writers for the
// same user: fn sees the latest committed session and its changes are saved
// only if no other writer committed in between.
type Store interface {
	Create(ctx context.Context, session *Session) error
	FindByUser(ctx context.Context, userID id.UserID) (*Session, error)
	Update(ctx context.Context, userID id.UserID, fn func(*Session) error) (*Session, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// EventPublisher routes SessionCompleted to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event SessionCompleted) error
}

// Service runs the verification workflow for authenticated users.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	events         EventPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithEventPublisher(events EventPublisher) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("tradegate/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start returns the user's session, creating it on first entry. The boolean
// reports whether a new session was created.
func (s *Service) Start(ctx context.Context, userID id.UserID) (*Session, bool, error) {
	existing, err := s.store.FindByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}

	session := NewSession(id.NewVerificationID(), userID, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another request created it first.
			existing, err := s.store.FindByUser(ctx, userID)
			if err != nil {
				return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
			}
			return existing, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification session")
	}

	s.metrics.IncrementSessionStarted()
	s.logAudit(ctx, audit.Event{
		UserID:  userID,
		Subject: session.ID.String(),
		Action:  string(audit.EventVerificationStarted),
	})
	return session, true, nil
}

// Get returns the user's session.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*Session, error) {
	session, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not started")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}
	return session, nil
}

// CompleteStep submits input for the step at index. Rejections are audited
// and returned unchanged so the caller can show the offending field.
func (s *Service) CompleteStep(ctx context.Context, userID id.UserID, index int, input StepInput) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "verification.CompleteStep",
		trace.WithAttributes(attribute.Int("verification.step", index)))
	defer span.End()

	now := requestcontext.Now(ctx)
	var record StepRecord
	session, err := s.store.Update(ctx, userID, func(sess *Session) error {
		var err error
		record, err = sess.CompleteStep(index, input, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step rejected")
		return nil, s.rejectStep(ctx, userID, index, err)
	}

	s.metrics.IncrementStepCompleted(record.Kind.String())
	s.logAudit(ctx, audit.Event{
		UserID:   userID,
		Subject:  session.ID.String(),
		Action:   string(audit.EventStepCompleted),
		Decision: "completed",
		Detail:   record.Kind.String(),
	})

	if index == StepCount-1 && session.IsComplete() {
		s.completeSession(ctx, session, record)
	}
	return session, nil
}

func (s *Service) rejectStep(ctx context.Context, userID id.UserID, index int, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "verification not started")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "step was submitted concurrently, reload and retry")
	}
	de, ok := dErrors.As(err)
	if !ok {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification session")
	}

	s.metrics.IncrementStepRejected(string(de.Code))
	s.logAudit(ctx, audit.Event{
		UserID:   userID,
		Action:   string(audit.EventStepRejected),
		Decision: "rejected",
		Reason:   string(de.Code),
		Detail:   StepKind(index).String() + " " + de.Field,
	})
	return de
}

func (s *Service) completeSession(ctx context.Context, session *Session, last StepRecord) {
	s.metrics.IncrementSessionCompleted()
	s.logAudit(ctx, audit.Event{
		UserID:   session.UserID,
		Subject:  session.ID.String(),
		Action:   string(audit.EventVerificationCompleted),
		Decision: "completed",
		Detail:   strconv.Itoa(StepCount) + " steps",
	})
	if s.events == nil {
		return
	}
	event := SessionCompleted{SessionID: session.ID, UserID: session.UserID, CompletedAt: last.CompletedAt}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session completed event",
			"session_id", session.ID,
			"user_id", session.UserID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if event.Email == "" {
		event.Email = requestcontext.Email(ctx)
	}
	s.logger.InfoContext(ctx, event.Action,
		"user_id", event.UserID,
		"subject", event.Subject,
		"decision", event.Decision,
		"reason", event.Reason,
		"request_id", requestcontext.RequestID(ctx),
		"event", event.Action,
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event.Action,
			"error", err,
		)
	}
}
