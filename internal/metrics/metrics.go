// Package metrics exposes engine-level Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the engine's instrumentation bundle. A nil *Metrics is valid
// everywhere: every method no-ops.
type Metrics struct {
	verifications *prometheus.CounterVec
	tamperChecks  *prometheus.CounterVec
	ledgerOps     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proptrust",
			Name:      "verifications_total",
			Help:      "Verification pipeline runs by outcome.",
		}, []string{"outcome"}),
		tamperChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proptrust",
			Name:      "tamper_checks_total",
			Help:      "Tamper checks by status.",
		}, []string{"status"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proptrust",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "proptrust",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.verifications, m.tamperChecks, m.ledgerOps, m.stageDuration)
	return m
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TamperCheck(status string) {
	if m == nil {
		return
	}
	m.tamperChecks.WithLabelValues(status).Inc()
}

func (m *Metrics) LedgerOp(op, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
