// Package metrics exposes Prometheus counters for the balance engine and its upstream.
//
// All methods are safe on a nil *Metrics so tests and tools can run without a registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settleup"

// Origin labels where a computation's input came from.
const (
	OriginUpstream = "upstream"
	OriginSnapshot = "snapshot"
	OriginRequest  = "request"
)

// Upstream call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeBreakerOpen = "breaker_open"
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	computations     *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	suggestions      prometheus.Histogram
	upstreamRequests *prometheus.CounterVec
	staleResponses   prometheus.Counter
}

// New creates a registry with the process collectors and the engine metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_computations_total",
			Help:      "Balance computations by input origin.",
		}, []string{"origin"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_records_total",
			Help:      "Records skipped by the calculator, by record kind.",
		}, []string{"kind"}),
		suggestions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_suggestions",
			Help:      "Number of transfers suggested per computation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses served from the snapshot cache because upstream was unavailable.",
		}),
	}

	reg.MustRegister(m.computations, m.rejected, m.suggestions, m.upstreamRequests, m.staleResponses)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveComputation(origin string) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(origin).Inc()
}

func (m *Metrics) ObserveRejected(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejected.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ObserveSuggestions(n int) {
	if m == nil {
		return
	}
	m.suggestions.Observe(float64(n))
}

func (m *Metrics) ObserveUpstream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}
