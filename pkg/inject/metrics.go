package inject

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the injector.
type Metrics struct {
	// Checks by key class and dispatched behavior
	checks *prometheus.CounterVec

	// Fault registrations by key class and behavior
	registrations *prometheus.CounterVec

	// Bounded faults that reached zero and were removed
	expirations *prometheus.CounterVec

	// Blocked checks released, by key class and outcome
	unblocked *prometheus.CounterVec

	// Checks currently blocked, per key class
	blockedCalls *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance registered against reg. Pass a
// private prometheus.NewRegistry() in tests to avoid duplicate-collector
// panics across instances.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faultline_checks_total",
				Help: "Total number of checkpoint evaluations by dispatched behavior",
			},
			[]string{"class", "behavior"},
		),

		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faultline_faults_registered_total",
				Help: "Total number of faults registered",
			},
			[]string{"class", "behavior"},
		),

		expirations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faultline_faults_expired_total",
				Help: "Total number of bounded faults removed after their last trigger",
			},
			[]string{"class"},
		),

		unblocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faultline_unblocked_total",
				Help: "Total number of blocked checks released",
			},
			[]string{"class", "outcome"},
		),

		blockedCalls: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faultline_blocked_checks",
				Help: "Current number of checks suspended on block faults",
			},
			[]string{"class"},
		),
	}
}

// RecordCheck records one checkpoint evaluation.
func (m *Metrics) RecordCheck(keyClass string, kind BehaviorKind) {
	m.checks.WithLabelValues(keyClass, kind.String()).Inc()
}

// RecordRegistration records one fault registration.
func (m *Metrics) RecordRegistration(keyClass string, kind BehaviorKind) {
	m.registrations.WithLabelValues(keyClass, kind.String()).Inc()
}

// RecordExpiration records a bounded fault reaching zero.
func (m *Metrics) RecordExpiration(keyClass string) {
	m.expirations.WithLabelValues(keyClass).Inc()
}

// RecordUnblocked records released blocked checks.
func (m *Metrics) RecordUnblocked(keyClass string, success bool, count int) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.unblocked.WithLabelValues(keyClass, outcome).Add(float64(count))
}

// SetBlocked updates the current blocked-check count for a key class.
func (m *Metrics) SetBlocked(keyClass string, count int) {
	m.blockedCalls.WithLabelValues(keyClass).Set(float64(count))
}
