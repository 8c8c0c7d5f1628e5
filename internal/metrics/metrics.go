// Package metrics exposes dispatch and storage counters in Prometheus
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/moon/internal/engine"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry
	matches  *prometheus.CounterVec
	storeOps *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moon",
			Name:      "match_total",
			Help:      "Dispatch steps by outcome (complete, partial, resolved, error).",
		}, []string{"outcome"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moon",
			Name:      "store_ops_total",
			Help:      "Storage operations by verb and result.",
		}, []string{"op", "result"}),
	}
	m.registry.MustRegister(
		m.matches,
		m.storeOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// Zero series exist from the start so rate() has a baseline.
	for _, outcome := range []string{
		engine.OutcomeComplete, engine.OutcomePartial,
		engine.OutcomeResolved, engine.OutcomeError,
	} {
		m.matches.WithLabelValues(outcome)
	}
	return m
}

var _ engine.Recorder = (*Metrics)(nil)

// ObserveMatch implements engine.Recorder.
func (m *Metrics) ObserveMatch(outcome string) {
	m.matches.WithLabelValues(outcome).Inc()
}

// ObserveStore implements engine.Recorder.
func (m *Metrics) ObserveStore(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
