// Package metrics exposes the prometheus collectors of the transfer pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bridge"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	StateTransitions *prometheus.CounterVec
	GuardianQueries  *prometheus.CounterVec
	GuardianLatency  *prometheus.HistogramVec
	PollAttempts     *prometheus.CounterVec
	Redemptions      *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	ChainHealth      *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg uses a private registry so that
// multiple instances can coexist in tests.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "state_transitions_total",
			Help:      "Total transfer state transitions",
		}, []string{"from", "to"}),

		GuardianQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardian",
			Name:      "queries_total",
			Help:      "Total guardian queries by outcome",
		}, []string{"host", "outcome"}),

		GuardianLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "guardian",
			Name:      "query_duration_seconds",
			Help:      "Guardian query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),

		PollAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "attempts_total",
			Help:      "Total attestation poll attempts by result",
		}, []string{"emitter_chain", "result"}),

		Redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "redemptions_total",
			Help:      "Total redemption outcomes",
		}, []string{"chain", "outcome"}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "submissions_total",
			Help:      "Total source transfer submissions",
		}, []string{"chain", "outcome"}),

		ChainHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "healthy",
			Help:      "1 when the chain connection passed its last health check",
		}, []string{"chain"}),
	}
}

// Transition records a state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// GuardianQuery records one guardian query outcome and its latency in seconds.
func (m *Metrics) GuardianQuery(host, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GuardianQueries.WithLabelValues(host, outcome).Inc()
	m.GuardianLatency.WithLabelValues(host).Observe(seconds)
}

// PollAttempt records one poll iteration.
func (m *Metrics) PollAttempt(emitterChain, result string) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(emitterChain, result).Inc()
}

// Redemption records the outcome of a redeem phase.
func (m *Metrics) Redemption(chain, outcome string) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(chain, outcome).Inc()
}

// Submission records the outcome of a submit phase.
func (m *Metrics) Submission(chain, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(chain, outcome).Inc()
}

// SetChainHealth records the last health check result of a chain connection.
func (m *Metrics) SetChainHealth(chain string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.ChainHealth.WithLabelValues(chain).Set(v)
}
