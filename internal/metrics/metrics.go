// Package metrics holds the Prometheus collectors for storage, cache and
// query activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stickynotes"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cachePurges   prometheus.Counter
	queryFetches  *prometheus.CounterVec
	queryRetries  prometheus.Counter
	authEvents    *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		storeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Storage operations by backend, operation and outcome",
			},
			[]string{"backend", "op", "outcome"},
		),

		storeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Storage operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"backend", "op"},
		),

		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Local cache reads by result (hit, miss, expired, foreign, error)",
			},
			[]string{"result"},
		),

		cachePurges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "user_purges_total",
			Help:      "Per-user cache purges",
		}),

		queryFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "fetches_total",
				Help:      "Authoritative fetches by outcome (committed, superseded, failed)",
			},
			[]string{"outcome"},
		),

		queryRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "retries_total",
			Help:      "Fetch attempts beyond the first",
		}),

		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Auth-state events published",
			},
			[]string{"type"},
		),
	}
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

// StoreOp records one storage operation.
func (m *Metrics) StoreOp(backend, op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(backend, op, outcome).Inc()
	m.storeDuration.WithLabelValues(backend, op).Observe(seconds)
}

// CacheLookup records one cache read.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CachePurge records a per-user purge.
func (m *Metrics) CachePurge() {
	if m == nil {
		return
	}
	m.cachePurges.Inc()
}

// QueryFetch records how an authoritative fetch ended.
func (m *Metrics) QueryFetch(outcome string) {
	if m == nil {
		return
	}
	m.queryFetches.WithLabelValues(outcome).Inc()
}

// QueryRetry records one retried fetch attempt.
func (m *Metrics) QueryRetry() {
	if m == nil {
		return
	}
	m.queryRetries.Inc()
}

// AuthEvent records a published auth-state event.
func (m *Metrics) AuthEvent(kind string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(kind).Inc()
}
