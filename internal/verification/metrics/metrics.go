package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification gate.
type Metrics struct {
	// Accepted step submissions by step name
	StepCompletions *prometheus.CounterVec

	// Rejected step submissions by error code
	StepRejections *prometheus.CounterVec

	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
}

// New registers verification metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers verification metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_verification_step_completions_total",
			Help: "Total accepted verification step submissions by step",
		}, []string{"step"}),

		StepRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_verification_step_rejections_total",
			Help: "Total rejected verification step submissions by error code",
		}, []string{"code"}),

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_verification_sessions_started_total",
			Help: "Total verification sessions created",
		}),

		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_verification_sessions_completed_total",
			Help: "Total verification sessions with every step completed",
		}),
	}
}

func (m *Metrics) IncrementStepCompleted(step string) {
	if m != nil {
		m.StepCompletions.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncrementStepRejected(code string) {
	if m != nil {
		m.StepRejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncrementSessionStarted() {
	if m != nil {
		m.SessionsStarted.Inc()
	}
}

func (m *Metrics) IncrementSessionCompleted() {
	if m != nil {
		m.SessionsCompleted.Inc()
	}
}
