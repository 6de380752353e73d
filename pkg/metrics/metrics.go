// Package metrics provides Prometheus metrics for the rotation optimizer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Solve outcomes
const (
	OutcomeOptimal    = "optimal"
	OutcomeFeasible   = "feasible"
	OutcomeInfeasible = "infeasible"
	OutcomeError      = "error"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Manager owns every collector. A nil or disabled Manager records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	solves        *prometheus.CounterVec
	solveDuration *prometheus.HistogramVec
	poolSize      prometheus.Histogram
	relationPairs prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	historyErrors prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the latency buckets, in seconds
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithMetricsEnabled enables or disables collection
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRegistry registers the collectors on registry instead of a fresh one
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a metrics manager on its own registry
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rotation",
		subsystem:        "optimizer",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.solves = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solves_total",
		Help:      "Rotation solves by encoding and outcome",
	}, []string{"encoding", "outcome"})

	m.solveDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solve_duration_seconds",
		Help:      "Time spent building and solving the selection model",
		Buckets:   m.histogramBuckets,
	}, []string{"encoding"})

	m.poolSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pool_size",
		Help:      "Number of candidates per solve",
		Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
	})

	m.relationPairs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "relation_pairs",
		Help:      "Teammate pairs per franchise relation",
		Buckets:   prometheus.ExponentialBuckets(8, 4, 10),
	})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "relation_cache_lookups_total",
		Help:      "Relation cache lookups by result",
	}, []string{"result"})

	m.historyErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_errors_total",
		Help:      "Relation builds aborted by missing or malformed history",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

func (m *Manager) active() bool {
	return m != nil && m.enabled
}

// Registry returns the registry the collectors live on
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSolve records one solve attempt
func (m *Manager) RecordSolve(encoding, outcome string, duration time.Duration, poolSize int) {
	if !m.active() {
		return
	}
	m.solves.WithLabelValues(encoding, outcome).Inc()
	m.solveDuration.WithLabelValues(encoding).Observe(duration.Seconds())
	m.poolSize.Observe(float64(poolSize))
}

// RecordRelation records the size of a built or loaded relation
func (m *Manager) RecordRelation(pairs int) {
	if !m.active() {
		return
	}
	m.relationPairs.Observe(float64(pairs))
}

// RecordCacheLookup counts a relation cache lookup
func (m *Manager) RecordCacheLookup(result string) {
	if !m.active() {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHistoryError counts a build aborted by bad history
func (m *Manager) RecordHistoryError() {
	if !m.active() {
		return
	}
	m.historyErrors.Inc()
}

// RecordHTTPRequest records a served request
func (m *Manager) RecordHTTPRequest(endpoint, method string, status int, duration time.Duration) {
	if !m.active() {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(duration.Seconds())
}
