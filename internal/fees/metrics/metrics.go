package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for fee quoting.
type Metrics struct {
	// Quotes computed by payment method
	Quotes *prometheus.CounterVec

	// Rejected quotes by error code
	QuoteErrors *prometheus.CounterVec
}

// New registers fee metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers fee metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_fee_quotes_total",
			Help: "Total fee breakdowns computed by payment method",
		}, []string{"payment_method"}),

		QuoteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_fee_quote_errors_total",
			Help: "Total rejected fee computations by error code",
		}, []string{"code"}),
	}
}

// IncrementQuote records a computed breakdown.
func (m *Metrics) IncrementQuote(paymentMethod string) {
	if m != nil {
		m.Quotes.WithLabelValues(paymentMethod).Inc()
	}
}

// IncrementQuoteError records a rejected computation.
func (m *Metrics) IncrementQuoteError(code string) {
	if m != nil {
		m.QuoteErrors.WithLabelValues(code).Inc()
	}
}
