package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/fees"
	"tradegate/internal/fees/metrics"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
	"tradegate/pkg/requestcontext"
)

// Calculator computes fee breakdowns.
type Calculator interface {
	ComputeFees(in fees.Inputs) (*fees.FeeBreakdown, error)
}

// Handler serves stateless fee quotes.
type Handler struct {
	calculator Calculator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New constructs a fee handler.
func New(calculator Calculator, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		calculator: calculator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Register mounts fee endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/fees/quote", h.HandleQuote)
}

// HandleQuote handles POST /fees/quote requests.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[QuoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	breakdown, err := h.calculator.ComputeFees(req.Inputs())
	if err != nil {
		h.metrics.IncrementQuoteError(string(dErrors.CodeOf(err)))
		h.logger.WarnContext(ctx, "fee quote rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementQuote(string(breakdown.Inputs.PaymentMethod))

	httputil.WriteJSON(w, http.StatusOK, FromBreakdown(breakdown))
}
