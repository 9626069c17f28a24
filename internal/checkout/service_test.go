package checkout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tradegate/internal/checkout"
	"tradegate/internal/checkout/ledger"
	"tradegate/internal/checkout/metrics"
	"tradegate/internal/checkout/store"
	"tradegate/internal/fees"
	feemetrics "tradegate/internal/fees/metrics"
	"tradegate/internal/verification"
	verificationstore "tradegate/internal/verification/store"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/audit"
	"tradegate/pkg/platform/audit/publisher"
	auditmemory "tradegate/pkg/platform/audit/store/memory"
	"tradegate/pkg/requestcontext"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []checkout.OrderAuthorized
	err    error
}

func (r *recordingEvents) Publish(_ context.Context, e checkout.OrderAuthorized) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// =============================================================================
// Checkout Service Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctx          context.Context
	orders       *store.InMemoryStore
	ledger       *ledger.InMemoryLedger
	audit        *auditmemory.InMemoryStore
	events       *recordingEvents
	metrics      *metrics.Metrics
	feeMetrics   *feemetrics.Metrics
	verification *verification.Service
	service      *checkout.Service
	userID       id.UserID
	now          time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.orders = store.NewInMemoryStore()
	s.ledger = ledger.NewInMemoryLedger()
	s.audit = auditmemory.NewInMemoryStore()
	s.events = &recordingEvents{}
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.feeMetrics = feemetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.userID = id.UserID(uuid.New())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.verification = verification.NewService(verificationstore.NewInMemoryStore(),
		verification.WithLogger(logger),
	)

	engine, err := fees.NewEngine(fees.DefaultSchedule())
	s.Require().NoError(err)
	s.service = checkout.NewService(s.orders, engine, s.verification, s.ledger,
		checkout.WithLogger(logger),
		checkout.WithAuditPublisher(publisher.NewPublisher(s.audit)),
		checkout.WithEventPublisher(s.events),
		checkout.WithMetrics(s.metrics),
		checkout.WithFeeMetrics(s.feeMetrics),
	)
}

func (s *ServiceSuite) verify(steps int) {
	_, _, err := s.verification.Start(s.ctx, s.userID)
	s.Require().NoError(err)
	all := []verification.StepInput{
		verification.DocumentsInput{Acknowledged: true},
		verification.PANInput{Aadhaar: "123456789012", Channel: verification.ChannelOTP},
		verification.AddressInput{Aadhaar: "123456789012", Channel: verification.ChannelDigiLocker},
		verification.BankInput{ProofAcknowledged: true},
		verification.DematInput{Accounts: []verification.DematAccount{{Type: verification.DepositoryNSDL, ID: "IN30000000000001"}}},
		verification.VideoKYCInput{CameraStreamStarted: true},
		verification.ESignInput{Consent: true},
	}
	for i := 0; i < steps; i++ {
		_, err := s.verification.CompleteStep(s.ctx, s.userID, i, all[i])
		s.Require().NoError(err)
	}
}

func workedInputs() fees.Inputs {
	return fees.Inputs{
		OrderValue:     decimal.RequireFromString("350.92"),
		Jurisdiction:   "MH",
		DeliveryMethod: fees.DeliveryDematTransfer,
		PaymentMethod:  fees.PaymentCard,
	}
}

func (s *ServiceSuite) quotedOrder() *checkout.Order {
	order, err := s.service.CreateOrder(s.ctx, s.userID, checkout.SideBuy, workedInputs())
	s.Require().NoError(err)
	order, err = s.service.Quote(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)
	return order
}

func (s *ServiceSuite) TestQuote() {
	s.Run("stores the breakdown", func() {
		order := s.quotedOrder()
		s.Equal(checkout.StateFeesComputed, order.State)
		s.Equal("457.25", fees.Money(order.Breakdown.Payable))
		s.Equal(float64(1), promtest.ToFloat64(s.feeMetrics.Quotes.WithLabelValues("card")))
		s.NotEmpty(s.audit.ListByAction(s.ctx, audit.EventFeesComputed))
	})

	s.Run("unknown jurisdiction is rejected at quote time", func() {
		in := workedInputs()
		in.Jurisdiction = "ZZ"
		order, err := s.service.CreateOrder(s.ctx, s.userID, checkout.SideSell, in)
		s.Require().NoError(err)

		_, err = s.service.Quote(s.ctx, s.userID, order.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownJurisdiction))
		s.Equal(float64(1), promtest.ToFloat64(s.feeMetrics.QuoteErrors.WithLabelValues(string(dErrors.CodeUnknownJurisdiction))))

		stored, err := s.service.GetOrder(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)
		s.Equal(checkout.StateDraft, stored.State)
		s.Nil(stored.Breakdown)
	})
}

func (s *ServiceSuite) TestAuthorize() {
	s.Run("complete verification and current quote", func() {
		s.verify(verification.StepCount)
		order := s.quotedOrder()

		auth, err := s.service.Authorize(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)
		s.Equal(checkout.Token(workedInputs()), auth.Token)
		s.True(auth.Payable.Equal(decimal.RequireFromString("457.2500112")))

		stored, err := s.service.GetOrder(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)
		s.Equal(checkout.StateAwaitingPayment, stored.State)

		s.Require().Equal(1, s.events.count())
		s.Equal("card", s.events.events[0].PaymentMethod)
		s.Equal("457.2500112", s.events.events[0].Payable)
		s.Len(s.audit.ListByAction(s.ctx, audit.EventOrderAuthorized), 1)
		s.Equal(float64(1), promtest.ToFloat64(s.metrics.Authorizations.WithLabelValues("authorized")))
	})
}

func (s *ServiceSuite) TestAuthorizeRejections() {
	s.Run("verification not started", func() {
		order := s.quotedOrder()
		_, err := s.service.Authorize(s.ctx, s.userID, order.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationIncomplete))
	})

	s.Run("six of seven steps", func() {
		s.verify(6)
		order := s.quotedOrder()

		_, err := s.service.Authorize(s.ctx, s.userID, order.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationIncomplete))
		de, _ := dErrors.As(err)
		s.Equal("6 steps completed", de.Actual)

		stored, err := s.service.GetOrder(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)
		s.Equal(checkout.StateFeesComputed, stored.State)

		rejected := s.audit.ListByAction(s.ctx, audit.EventOrderRejected)
		s.Require().NotEmpty(rejected)
		s.Equal(string(dErrors.CodeVerificationIncomplete), rejected[len(rejected)-1].Reason)
		s.Equal(0, s.events.count())
	})
}

func (s *ServiceSuite) TestStaleQuoteAfterEdit() {
	s.verify(verification.StepCount)
	order := s.quotedOrder()

	v := decimal.RequireFromString("500")
	updated, err := s.service.UpdateOrder(s.ctx, s.userID, order.ID, checkout.Update{OrderValue: &v})
	s.Require().NoError(err)
	s.Equal(checkout.StateDraft, updated.State)

	_, err = s.service.Authorize(s.ctx, s.userID, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeStaleFeeSnapshot))
	de, _ := dErrors.As(err)
	s.Equal("order_value", de.Field)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Authorizations.WithLabelValues(string(dErrors.CodeStaleFeeSnapshot))))

	_, err = s.service.Quote(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)
	auth, err := s.service.Authorize(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)
	in := workedInputs()
	in.OrderValue = v
	s.Equal(checkout.Token(in), auth.Token)
}

func (s *ServiceSuite) TestAuthorizeIsIdempotent() {
	s.verify(verification.StepCount)
	order := s.quotedOrder()

	first, err := s.service.Authorize(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)
	second, err := s.service.Authorize(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)

	s.Equal(first.Token, second.Token)
	s.True(first.Payable.Equal(second.Payable))
	s.Equal(1, s.events.count(), "one event per authorization")
	s.Len(s.audit.ListByAction(s.ctx, audit.EventOrderAuthorized), 1)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Authorizations.WithLabelValues("replayed")))
}

func (s *ServiceSuite) TestAuthorizeRespectsLedger() {
	s.verify(verification.StepCount)
	order := s.quotedOrder()

	earlier := &checkout.Authorization{
		OrderID:      order.ID,
		Token:        checkout.Token(workedInputs()),
		Payable:      order.Breakdown.Payable,
		AuthorizedAt: s.now.Add(-time.Hour),
	}
	_, found, err := s.ledger.Reserve(s.ctx, earlier)
	s.Require().NoError(err)
	s.Require().False(found)

	auth, err := s.service.Authorize(s.ctx, s.userID, order.ID)
	s.Require().NoError(err)
	s.Equal(earlier.AuthorizedAt, auth.AuthorizedAt)
	s.NotNil(auth.Breakdown)
	s.Equal(0, s.events.count())
}

func (s *ServiceSuite) TestConcurrentAuthorize() {
	s.verify(verification.StepCount)
	order := s.quotedOrder()

	const workers = 20
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			auth, err := s.service.Authorize(s.ctx, s.userID, order.ID)
			errs[i] = err
			if err == nil {
				tokens[i] = auth.Token
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		s.NoError(errs[i])
		s.Equal(tokens[0], tokens[i])
	}
	s.Equal(1, s.events.count())
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailAuthorization() {
	s.events.err = errors.New("broker down")
	s.verify(verification.StepCount)
	order := s.quotedOrder()

	_, err := s.service.Authorize(s.ctx, s.userID, order.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestOwnership() {
	order := s.quotedOrder()
	other := id.UserID(uuid.New())

	_, err := s.service.GetOrder(s.ctx, other, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Quote(s.ctx, other, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Authorize(s.ctx, other, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Abandon(s.ctx, other, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.GetOrder(s.ctx, s.userID, id.NewOrderID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLifecycle() {
	s.Run("payment confirmation places the order", func() {
		s.verify(verification.StepCount)
		order := s.quotedOrder()
		auth, err := s.service.Authorize(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)

		_, err = s.service.ConfirmPayment(s.ctx, order.ID, "not-the-token")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		placed, err := s.service.ConfirmPayment(s.ctx, order.ID, auth.Token)
		s.Require().NoError(err)
		s.Equal(checkout.StatePlaced, placed.State)
		s.True(placed.Archived)
		events := s.audit.ListByAction(s.ctx, audit.EventOrderPlaced)
		s.Require().Len(events, 1)
		s.Equal(s.userID, events[0].UserID, "placement is attributed to the order owner")

		_, err = s.service.ConfirmPayment(s.ctx, id.NewOrderID(), auth.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(float64(1), promtest.ToFloat64(s.metrics.Orders.WithLabelValues("placed")))
	})

	s.Run("abandoned orders cannot be quoted", func() {
		order := s.quotedOrder()
		abandoned, err := s.service.Abandon(s.ctx, s.userID, order.ID)
		s.Require().NoError(err)
		s.Equal(checkout.ArchiveAbandoned, abandoned.ArchivedReason)

		_, err = s.service.Quote(s.ctx, s.userID, order.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}
