// Package metrics holds the Prometheus collectors for the vibecheck pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs                    *prometheus.CounterVec
	ThreadExpansionFailures prometheus.Counter
	CommentsCollected       prometheus.Histogram
	QuotesDropped           *prometheus.CounterVec
	StageDuration           *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibecheck",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		ThreadExpansionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibecheck",
			Name:      "thread_expansion_failures_total",
			Help:      "Threads whose replies failed to load and were skipped.",
		}),
		CommentsCollected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vibecheck",
			Name:      "comments_collected",
			Help:      "Comments sent to the model per run.",
			Buckets:   []float64{0, 5, 10, 20, 30, 40, 50},
		}),
		QuotesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibecheck",
			Name:      "quotes_dropped_total",
			Help:      "Digest points removed because their quote was not found in the input.",
		}, []string{"list"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vibecheck",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(
		m.Runs,
		m.ThreadExpansionFailures,
		m.CommentsCollected,
		m.QuotesDropped,
		m.StageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
