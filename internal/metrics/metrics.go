// Package metrics exposes prometheus counters for the promotion pipeline.
// Metrics are advisory observability: nothing in the engine reads them back.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/resilience"
)

// Metrics holds the pipeline's prometheus collectors on a private registry
// so parallel tests never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	decisions     *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	proposerCalls *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
	passDuration  prometheus.Histogram
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "decisions_total",
			Help:      "Promotion decisions by outcome and reason code.",
		}, []string{"decision", "reason"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "candidates_total",
			Help:      "Candidates generated by extraction method.",
		}, []string{"method"}),
		proposerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "proposer_calls_total",
			Help:      "Proposer API calls by outcome.",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ingest",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
		}, []string{"service"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "document_pass_seconds",
			Help:      "Wall time of a full document pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(m.decisions, m.candidates, m.proposerCalls, m.breakerState, m.passDuration)
	return m
}

// ObserveDecision counts one terminal decision.
func (m *Metrics) ObserveDecision(d model.Decision, reason model.ReasonCode) {
	m.decisions.WithLabelValues(string(d), string(reason)).Inc()
}

// ObserveCandidate counts one generated candidate.
func (m *Metrics) ObserveCandidate(method model.ExtractionMethod) {
	m.candidates.WithLabelValues(string(method)).Inc()
}

// ObserveProposerCall counts one proposer call with its outcome label
// ("ok", "error", "malformed").
func (m *Metrics) ObserveProposerCall(outcome string) {
	m.proposerCalls.WithLabelValues(outcome).Inc()
}

// ObservePassDuration records the wall time of one document pass.
func (m *Metrics) ObservePassDuration(seconds float64) {
	m.passDuration.Observe(seconds)
}

// BreakerHook returns an OnStateChange callback for the circuit breaker.
func (m *Metrics) BreakerHook() func(service string, from, to resilience.State) {
	return func(service string, _, to resilience.State) {
		var v float64
		switch to {
		case resilience.StateOpen:
			v = 1
		case resilience.StateHalfOpen:
			v = 2
		}
		m.breakerState.WithLabelValues(service).Set(v)
	}
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry for tests.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
