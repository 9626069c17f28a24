package checkout

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tradegate/internal/checkout/metrics"
	"tradegate/internal/fees"
	feemetrics "tradegate/internal/fees/metrics"
	"tradegate/internal/verification"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/audit"
	"tradegate/pkg/platform/sentinel"
	"tradegate/pkg/requestcontext"
)

// OrderStore holds draft and archived orders. Update runs fn on a private
// copy and commits it only when fn succeeds; writers to one order are
// serialized.
type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, orderID id.OrderID) (*Order, error)
	Update(ctx context.Context, orderID id.OrderID, fn func(*Order) error) (*Order, error)
}

// Calculator computes fee breakdowns.
type Calculator interface {
	ComputeFees(in fees.Inputs) (*fees.FeeBreakdown, error)
}

// VerificationGate exposes the user's verification session.
type VerificationGate interface {
	Get(ctx context.Context, userID id.UserID) (*verification.Session, error)
}

// Ledger records which (order, token) pairs have been authorized. Reserve
// returns the earlier authorization and true if the pair already exists.
type Ledger interface {
	Reserve(ctx context.Context, auth *Authorization) (*Authorization, bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// EventPublisher routes OrderAuthorized to the payment collaborator.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderAuthorized) error
}

// Service runs checkout for authenticated users.
type Service struct {
	orders         OrderStore
	calculator     Calculator
	gate           VerificationGate
	ledger         Ledger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	events         EventPublisher
	metrics        *metrics.Metrics
	feeMetrics     *feemetrics.Metrics
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

func WithFeeMetrics(m *feemetrics.Metrics) Option {
	return func(s *Service) {
		s.feeMetrics = m
	}
}

// NewService constructs a Service.
func NewService(orders OrderStore, calculator Calculator, gate VerificationGate, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		orders:     orders,
		calculator: calculator,
		gate:       gate,
		ledger:     ledger,
		logger:     slog.Default(),
		tracer:     otel.Tracer("tradegate/checkout"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder opens a draft order for userID.
func (s *Service) CreateOrder(ctx context.Context, userID id.UserID, side Side, in fees.Inputs) (*Order, error) {
	order, err := NewOrder(id.NewOrderID(), userID, side, in, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create order")
	}

	s.metrics.IncrementOrderEvent("created")
	s.logAudit(ctx, audit.Event{
		UserID:  userID,
		Subject: order.ID.String(),
		Action:  string(audit.EventOrderCreated),
		Detail:  string(side),
	})
	return order.Clone(), nil
}

// GetOrder returns one of the user's orders.
func (s *Service) GetOrder(ctx context.Context, userID id.UserID, orderID id.OrderID) (*Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load order")
	}
	if order.UserID != userID {
		return nil, errOrderNotFound()
	}
	return order, nil
}

// UpdateOrder edits the order's fee inputs and returns it to Draft. The
// previous quote stays attached and no longer matches, so authorization
// demands a fresh quote.
func (s *Service) UpdateOrder(ctx context.Context, userID id.UserID, orderID id.OrderID, u Update) (*Order, error) {
	now := requestcontext.Now(ctx)
	order, err := s.orders.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID {
			return errOrderNotFound()
		}
		return o.ApplyUpdate(u, now)
	})
	if err != nil {
		return nil, translateStoreErr(err, "failed to update order")
	}

	s.logAudit(ctx, audit.Event{
		UserID:  userID,
		Subject: orderID.String(),
		Action:  string(audit.EventOrderUpdated),
	})
	return order, nil
}

// Quote computes and stores the fee breakdown for the order's current inputs.
func (s *Service) Quote(ctx context.Context, userID id.UserID, orderID id.OrderID) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	order, err := s.orders.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID {
			return errOrderNotFound()
		}
		if err := o.ensureActive(); err != nil {
			return err
		}
		breakdown, err := s.calculator.ComputeFees(o.Inputs())
		if err != nil {
			return err
		}
		return o.ApplyQuote(breakdown, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		if dErrors.HasCode(err, dErrors.CodeInvalidOrderValue) ||
			dErrors.HasCode(err, dErrors.CodeUnknownJurisdiction) ||
			dErrors.HasCode(err, dErrors.CodeUnknownPaymentMethod) {
			s.feeMetrics.IncrementQuoteError(string(dErrors.CodeOf(err)))
		}
		return nil, translateStoreErr(err, "failed to quote order")
	}

	span.SetAttributes(
		attribute.String("fees.payment_method", string(order.PaymentMethod)),
		attribute.String("fees.payable", order.Breakdown.Payable.String()),
	)
	s.feeMetrics.IncrementQuote(string(order.PaymentMethod))
	s.logAudit(ctx, audit.Event{
		UserID:  userID,
		Subject: orderID.String(),
		Action:  string(audit.EventFeesComputed),
		Detail:  "payable " + fees.Money(order.Breakdown.Payable),
	})
	return order, nil
}

// Authorize checks the verification gate and the stored quote and, on
// success, makes the order payable. Repeating the call for unchanged inputs
// returns the original authorization.
func (s *Service) Authorize(ctx context.Context, userID id.UserID, orderID id.OrderID) (*Authorization, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Authorize",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	var session SessionState
	sess, err := s.gate.Get(ctx, userID)
	switch {
	case err == nil:
		session = sess
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}

	now := requestcontext.Now(ctx)
	var auth *Authorization
	fresh := false
	_, err = s.orders.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID {
			return errOrderNotFound()
		}
		replay := o.State == StateAwaitingPayment
		a, err := AuthorizeOrder(o, session, o.Breakdown, now)
		if err != nil {
			return err
		}
		if !replay {
			existing, found, err := s.ledger.Reserve(ctx, a)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record authorization")
			}
			if found {
				if existing.Breakdown == nil {
					existing.Breakdown = a.Breakdown
				}
				a = existing
				o.Authorization = existing
			} else {
				fresh = true
			}
		}
		auth = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization rejected")
		return nil, s.rejectAuthorization(ctx, userID, orderID, err)
	}

	span.SetAttributes(attribute.Bool("checkout.replayed", !fresh))
	if !fresh {
		s.metrics.IncrementAuthorization("replayed")
		return auth, nil
	}

	s.metrics.IncrementAuthorization("authorized")
	s.logAudit(ctx, audit.Event{
		UserID:   userID,
		Subject:  orderID.String(),
		Action:   string(audit.EventOrderAuthorized),
		Decision: "authorized",
		Detail:   "payable " + fees.Money(auth.Payable),
	})
	s.publishAuthorized(ctx, userID, auth)
	return auth, nil
}

func (s *Service) rejectAuthorization(ctx context.Context, userID id.UserID, orderID id.OrderID, err error) error {
	err = translateStoreErr(err, "failed to authorize order")
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeNotFound {
		return err
	}

	s.metrics.IncrementAuthorization(string(code))
	detail := ""
	if de, ok := dErrors.As(err); ok {
		detail = de.Field
	}
	s.logAudit(ctx, audit.Event{
		UserID:   userID,
		Subject:  orderID.String(),
		Action:   string(audit.EventOrderRejected),
		Decision: "rejected",
		Reason:   string(code),
		Detail:   detail,
	})
	return err
}

func (s *Service) publishAuthorized(ctx context.Context, userID id.UserID, auth *Authorization) {
	if s.events == nil {
		return
	}
	event := OrderAuthorized{
		OrderID:       auth.OrderID,
		UserID:        userID,
		Token:         auth.Token,
		Payable:       auth.Payable.String(),
		PaymentMethod: string(auth.Breakdown.Inputs.PaymentMethod),
		AuthorizedAt:  auth.AuthorizedAt,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order authorized event",
			"order_id", auth.OrderID,
			"error", err,
		)
	}
}

// ConfirmPayment places an order after the payment collaborator captured the
// authorized amount. Callers authenticate the collaborator; the order owner
// cannot place an order themselves.
func (s *Service) ConfirmPayment(ctx context.Context, orderID id.OrderID, token string) (*Order, error) {
	now := requestcontext.Now(ctx)
	order, err := s.orders.Update(ctx, orderID, func(o *Order) error {
		return o.ConfirmPayment(token, now)
	})
	if err != nil {
		return nil, translateStoreErr(err, "failed to confirm payment")
	}

	s.metrics.IncrementOrderEvent("placed")
	s.logAudit(ctx, audit.Event{
		UserID:   order.UserID,
		Subject:  orderID.String(),
		Action:   string(audit.EventOrderPlaced),
		Decision: "placed",
		Detail:   "payable " + fees.Money(order.Authorization.Payable),
	})
	return order, nil
}

// Abandon archives an order the user walked away from.
func (s *Service) Abandon(ctx context.Context, userID id.UserID, orderID id.OrderID) (*Order, error) {
	now := requestcontext.Now(ctx)
	order, err := s.orders.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID {
			return errOrderNotFound()
		}
		return o.Abandon(now)
	})
	if err != nil {
		return nil, translateStoreErr(err, "failed to abandon order")
	}

	s.metrics.IncrementOrderEvent("abandoned")
	s.logAudit(ctx, audit.Event{
		UserID:  userID,
		Subject: orderID.String(),
		Action:  string(audit.EventOrderAbandoned),
		Detail:  string(order.State),
	})
	return order, nil
}

func errOrderNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "order not found")
}

// translateStoreErr keeps domain errors and maps store sentinels.
func translateStoreErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return errOrderNotFound()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
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
