// Package httpapi assembles the public HTTP surface.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	checkouthandler "tradegate/internal/checkout/handler"
	feehandler "tradegate/internal/fees/handler"
	"tradegate/internal/platform/metrics"
	verificationhandler "tradegate/internal/verification/handler"
	"tradegate/pkg/platform/httputil"
	"tradegate/pkg/platform/middleware/auth"
	"tradegate/pkg/platform/middleware/callback"
	"tradegate/pkg/platform/middleware/metadata"
	"tradegate/pkg/platform/middleware/request"
	"tradegate/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports on one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the handlers and infrastructure the router mounts.
type Dependencies struct {
	Logger       *slog.Logger
	Validator    auth.TokenValidator
	HTTPMetrics  *metrics.HTTP
	Gatherer     prometheus.Gatherer
	HealthChecks []HealthCheck

	Fees         *feehandler.Handler
	Verification *verificationhandler.Handler
	Checkout     *checkouthandler.Handler

	// PaymentCallbackSecret signs payment capture callbacks. Empty disables
	// the callback route.
	PaymentCallbackSecret string
}

// NewRouter wires middleware and every endpoint. Verification and order
// routes require a user bearer token, payment confirmation requires the
// payment system's signature, and quotes, health and metrics are public.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger, d.HTTPMetrics, routePattern))

	r.Get("/healthz", healthHandler(d.HealthChecks))
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	d.Fees.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Validator, d.Logger))
		d.Verification.Register(r)
		d.Checkout.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(callback.RequireSignature(d.PaymentCallbackSecret, d.Logger))
		d.Checkout.RegisterPaymentCallbacks(r)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
