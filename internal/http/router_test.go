package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"tradegate/internal/checkout"
	checkouthandler "tradegate/internal/checkout/handler"
	"tradegate/internal/checkout/ledger"
	checkoutmetrics "tradegate/internal/checkout/metrics"
	checkoutstore "tradegate/internal/checkout/store"
	"tradegate/internal/fees"
	feehandler "tradegate/internal/fees/handler"
	feemetrics "tradegate/internal/fees/metrics"
	jwttoken "tradegate/internal/jwt_token"
	"tradegate/internal/platform/metrics"
	"tradegate/internal/verification"
	verificationhandler "tradegate/internal/verification/handler"
	verificationmetrics "tradegate/internal/verification/metrics"
	verificationstore "tradegate/internal/verification/store"
	id "tradegate/pkg/domain"
	"tradegate/pkg/testutil"
)

// =============================================================================
// Router Test Suite
// =============================================================================

type RouterSuite struct {
	suite.Suite
	router  http.Handler
	jwt     *jwttoken.JWTService
	userID  id.UserID
	token   string
	healthy error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	s.healthy = nil

	engine, err := fees.NewEngine(fees.DefaultSchedule())
	s.Require().NoError(err)
	feeMetrics := feemetrics.NewWithRegisterer(reg)

	verifier := verification.NewService(verificationstore.NewInMemoryStore(),
		verification.WithLogger(logger),
		verification.WithMetrics(verificationmetrics.NewWithRegisterer(reg)),
	)
	orders := checkout.NewService(checkoutstore.NewInMemoryStore(), engine, verifier, ledger.NewInMemoryLedger(),
		checkout.WithLogger(logger),
		checkout.WithMetrics(checkoutmetrics.NewWithRegisterer(reg)),
		checkout.WithFeeMetrics(feeMetrics),
	)

	s.jwt = jwttoken.NewJWTService("router-test-key", "tradegate-test")
	s.userID = id.UserID(uuid.New())
	s.token, err = s.jwt.GenerateToken(s.userID, "trader@example.com", time.Hour)
	s.Require().NoError(err)

	s.router = NewRouter(Dependencies{
		Logger:      logger,
		Validator:   jwttoken.NewJWTServiceAdapter(s.jwt),
		HTTPMetrics: metrics.NewHTTPWithRegisterer(reg),
		Gatherer:    reg,
		HealthChecks: []HealthCheck{{
			Name:  "redis",
			Check: func(context.Context) error { return s.healthy },
		}},
		Fees:         feehandler.New(engine, logger, feeMetrics),
		Verification: verificationhandler.New(verifier, logger),
		Checkout:     checkouthandler.New(orders, logger),

		PaymentCallbackSecret: paymentSecret,
	})
}

const paymentSecret = "router-test-payment-secret"

func (s *RouterSuite) paymentCallback(path string, body any) *http.Request {
	return testutil.WithCallbackSignature(s.T(), testutil.NewJSONRequest(s.T(), http.MethodPost, path, body), paymentSecret)
}

func (s *RouterSuite) authed(method, path string, body any) *http.Request {
	return testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), s.token)
}

func (s *RouterSuite) do(req *http.Request) (int, string) {
	rr := testutil.DoRequest(s.router, req)
	return rr.Code, rr.Body.String()
}

var stepBodies = []map[string]any{
	{"kind": "documents", "acknowledged": true},
	{"kind": "pan", "aadhaar": "123456789012", "channel": "otp"},
	{"kind": "address", "aadhaar": "123456789012", "channel": "digilocker"},
	{"kind": "bank", "proof_acknowledged": true},
	{"kind": "demat", "accounts": []map[string]string{{"type": "CDSL", "id": "1208160000000001"}}},
	{"kind": "video_kyc", "camera_stream_started": true},
	{"kind": "esign", "consent": true},
}

func (s *RouterSuite) TestCheckoutFlow() {
	code, body := s.do(s.authed(http.MethodPost, "/verification", nil))
	s.Require().Equal(http.StatusCreated, code, body)

	for i := 0; i < len(stepBodies)-1; i++ {
		code, body = s.do(s.authed(http.MethodPost, fmt.Sprintf("/verification/steps/%d", i), stepBodies[i]))
		s.Require().Equal(http.StatusOK, code, body)
	}

	rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, "/orders", map[string]string{
		"side":            "buy",
		"order_value":     "350.92",
		"jurisdiction":    "MH",
		"delivery_method": "demat_transfer",
		"payment_method":  "card",
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	order := testutil.UnmarshalResponse[checkouthandler.OrderResponse](s.T(), rr)
	base := "/orders/" + order.OrderID

	code, body = s.do(s.authed(http.MethodPost, base+"/quote", nil))
	s.Require().Equal(http.StatusOK, code, body)
	s.Contains(body, `"payable":"457.25"`)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, base+"/authorize", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "verification_incomplete")

	code, body = s.do(s.authed(http.MethodPost, "/verification/steps/6", stepBodies[6]))
	s.Require().Equal(http.StatusOK, code, body)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, base+"/authorize", nil))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	auth := testutil.UnmarshalResponse[checkouthandler.AuthorizationResponse](s.T(), rr)
	s.Equal("457.25", auth.Payable)
	s.Len(auth.Token, 64)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, base+"/authorize", nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	again := testutil.UnmarshalResponse[checkouthandler.AuthorizationResponse](s.T(), rr)
	s.Equal(auth.Token, again.Token, "authorizing twice yields one authorization")

	rr = testutil.DoRequest(s.router, s.paymentCallback(base+"/payment-confirmation", map[string]string{
		"token": auth.Token, "payment_reference": "pay_981",
	}))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	testutil.AssertJSONContains(s.T(), rr, "state", "placed")
}

// authorizedOrder verifies the user, then creates, quotes and authorizes an
// order. It returns the order path and the authorization token.
func (s *RouterSuite) authorizedOrder() (string, string) {
	code, body := s.do(s.authed(http.MethodPost, "/verification", nil))
	s.Require().Equal(http.StatusCreated, code, body)
	for i := range stepBodies {
		code, body = s.do(s.authed(http.MethodPost, fmt.Sprintf("/verification/steps/%d", i), stepBodies[i]))
		s.Require().Equal(http.StatusOK, code, body)
	}

	rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, "/orders", map[string]string{
		"side": "buy", "order_value": "350.92", "jurisdiction": "MH",
		"delivery_method": "demat_transfer", "payment_method": "card",
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	base := "/orders/" + testutil.UnmarshalResponse[checkouthandler.OrderResponse](s.T(), rr).OrderID

	code, body = s.do(s.authed(http.MethodPost, base+"/quote", nil))
	s.Require().Equal(http.StatusOK, code, body)
	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, base+"/authorize", nil))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return base, testutil.UnmarshalResponse[checkouthandler.AuthorizationResponse](s.T(), rr).Token
}

func (s *RouterSuite) TestPaymentConfirmationRequiresPaymentSystem() {
	base, token := s.authorizedOrder()
	confirm := base + "/payment-confirmation"
	payload := map[string]string{"token": token}

	s.Run("user bearer token cannot place the order", func() {
		rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, confirm, payload))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("signature under another secret is rejected", func() {
		req := testutil.WithCallbackSignature(s.T(), testutil.NewJSONRequest(s.T(), http.MethodPost, confirm, payload), "guessed")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("order is still awaiting payment", func() {
		rr := testutil.DoRequest(s.router, s.authed(http.MethodGet, base, nil))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(s.T(), rr, "state", "awaiting_payment")
	})

	s.Run("signed callback places the order", func() {
		rr := testutil.DoRequest(s.router, s.paymentCallback(confirm, payload))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(s.T(), rr, "state", "placed")
	})
}

func (s *RouterSuite) TestStaleQuote() {
	rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, "/orders", map[string]string{
		"side": "sell", "order_value": "1000", "jurisdiction": "KA",
		"delivery_method": "physical_delivery", "payment_method": "upi",
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	order := testutil.UnmarshalResponse[checkouthandler.OrderResponse](s.T(), rr)
	base := "/orders/" + order.OrderID

	code, _ := s.do(s.authed(http.MethodPost, base+"/quote", nil))
	s.Require().Equal(http.StatusOK, code)
	rr = testutil.DoRequest(s.router, s.authed(http.MethodPatch, base, map[string]string{"order_value": "2000"}))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	testutil.AssertJSONContains(s.T(), rr, "quote_current", false)
}

func (s *RouterSuite) TestAuthentication() {
	code, _ := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/verification", nil))
	s.Equal(http.StatusUnauthorized, code)

	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/orders", nil), "garbage")
	code, _ = s.do(req)
	s.Equal(http.StatusUnauthorized, code)

	other, err := jwttoken.NewJWTService("router-test-key", "another-issuer").GenerateToken(s.userID, "", time.Hour)
	s.Require().NoError(err)
	code, _ = s.do(testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/verification", nil), other))
	s.Equal(http.StatusUnauthorized, code)
}

func (s *RouterSuite) TestPublicEndpoints() {
	s.Run("stateless quote", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/fees/quote", map[string]string{
			"order_value": "20000", "jurisdiction": "MH", "delivery_method": "physical_delivery", "payment_method": "wallet",
		}))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.Contains(rr.Body.String(), `"name":"platform_fee","amount":"100.00"`)
	})

	s.Run("healthz", func() {
		code, body := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusOK, code)
		s.Contains(body, `"redis":"ok"`)

		s.healthy = errors.New("connection refused")
		code, body = s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusServiceUnavailable, code)
		s.Contains(body, "degraded")
	})

	s.Run("metrics", func() {
		code, body := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
		s.Equal(http.StatusOK, code)
		s.True(strings.Contains(body, "tradegate_http_requests_total"), "request counter exported")
	})

	s.Run("request id is echoed", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rr := testutil.DoRequest(s.router, req)
		s.Equal("req-42", rr.Header().Get("X-Request-ID"))
	})
}
