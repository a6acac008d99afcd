// Package metrics exposes gateway events as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/mergelink/internal/eventbus"
	events "github.com/hanpama/mergelink/internal/events"
)

const namespace = "mergelink"

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePartial = "partial" // merged with unresolved join sites
)

// Metrics holds the gateway collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec   // by status
	sourceRequests *prometheus.CounterVec   // by source and outcome
	sourceDuration *prometheus.HistogramVec // by source
	merges         *prometheus.CounterVec   // by outcome
	mergeDuration  prometheus.Histogram
	unresolved     prometheus.Counter
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of GraphQL HTTP requests served",
		}, []string{"status"}),

		sourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests sent to GraphQL sources",
		}, []string{"source", "outcome"}),

		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Source request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of federated operations executed",
		}, []string{"outcome"}),

		mergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "End-to-end federated operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_joins_total",
			Help:      "Total number of join sites left null because no entity matched",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.sourceRequests,
		m.sourceDuration,
		m.merges,
		m.mergeDuration,
		m.unresolved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Register subscribes the collectors to b. The returned func detaches them.
func (m *Metrics) Register(b *eventbus.Bus) (unsubscribe func()) {
	offs := []func(){
		eventbus.On(b, func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
		}),
		eventbus.On(b, func(_ context.Context, e events.SourceRequestFinish) {
			outcome := OutcomeOK
			if e.Err != nil {
				outcome = OutcomeError
			}
			m.sourceRequests.WithLabelValues(e.Source, outcome).Inc()
			m.sourceDuration.WithLabelValues(e.Source).Observe(e.Duration.Seconds())
		}),
		eventbus.On(b, func(_ context.Context, e events.MergeFinish) {
			outcome := OutcomeOK
			switch {
			case e.Err != nil:
				outcome = OutcomeError
			case e.Unresolved > 0:
				outcome = OutcomePartial
			}
			m.merges.WithLabelValues(outcome).Inc()
			m.mergeDuration.Observe(e.Duration.Seconds())
			m.unresolved.Add(float64(e.Unresolved))
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
