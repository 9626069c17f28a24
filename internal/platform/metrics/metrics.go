package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP holds request-level Prometheus metrics. It satisfies the request
// logger's Observer.
type HTTP struct {
	RequestDuration *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
}

// NewHTTP registers HTTP metrics with the default registerer.
func NewHTTP() *HTTP {
	return NewHTTPWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHTTPWithRegisterer registers HTTP metrics with reg.
func NewHTTPWithRegisterer(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradegate_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveRequest records one completed request.
func (m *HTTP) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
