package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for checkout.
type Metrics struct {
	// Authorization attempts by outcome: "authorized", "replayed", or the
	// rejection code
	Authorizations *prometheus.CounterVec

	// Orders by lifecycle event: "created", "placed", "abandoned"
	Orders *prometheus.CounterVec
}

// New registers checkout metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers checkout metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Authorizations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_checkout_authorizations_total",
			Help: "Total order authorization attempts by outcome",
		}, []string{"outcome"}),

		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_checkout_orders_total",
			Help: "Total order lifecycle events",
		}, []string{"event"}),
	}
}

// IncrementAuthorization records an authorization outcome.
func (m *Metrics) IncrementAuthorization(outcome string) {
	if m != nil {
		m.Authorizations.WithLabelValues(outcome).Inc()
	}
}

// IncrementOrderEvent records an order lifecycle event.
func (m *Metrics) IncrementOrderEvent(event string) {
	if m != nil {
		m.Orders.WithLabelValues(event).Inc()
	}
}
