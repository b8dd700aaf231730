// Package metrics provides Prometheus metrics for the scheduling engine,
// exported via an HTTP endpoint in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all engine metrics and provides helper methods for
// recording them.
type Registry struct {
	registry prometheus.Registerer

	preloadAssignmentsTotal prometheus.CounterVec
	draftsPublishedTotal    prometheus.CounterVec
	draftsRolledBackTotal   prometheus.Counter
	publishRowErrorsTotal   prometheus.Counter
	resolutionsTotal        prometheus.CounterVec

	solverRuntimeSeconds  prometheus.HistogramVec
	publishDurationSeconds prometheus.Histogram

	activeSolverRuns prometheus.Gauge
}

// NewRegistry creates and registers all engine metrics with the global
// registry. It panics if any metric fails to register.
func NewRegistry() *Registry {
	return NewRegistryWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRegistryWithRegisterer registers metrics with a custom registerer,
// mainly for tests. It panics if any metric fails to register.
func NewRegistryWithRegisterer(registerer prometheus.Registerer) *Registry {
	m := &Registry{registry: registerer}

	m.preloadAssignmentsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preload_assignments_total",
			Help: "Locked half-day assignments written, by preload pass",
		},
		[]string{"pass"},
	)
	m.registry.MustRegister(&m.preloadAssignmentsTotal)

	m.draftsPublishedTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drafts_published_total",
			Help: "Draft publishes by outcome",
		},
		[]string{"outcome"},
	)
	m.registry.MustRegister(&m.draftsPublishedTotal)

	m.draftsRolledBackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drafts_rolled_back_total",
		Help: "Successful draft rollbacks",
	})
	m.registry.MustRegister(m.draftsRolledBackTotal)

	m.publishRowErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publish_row_errors_total",
		Help: "Per-row errors during draft publish",
	})
	m.registry.MustRegister(m.publishRowErrorsTotal)

	m.resolutionsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflict_resolutions_total",
			Help: "Conflict auto-resolutions by status",
		},
		[]string{"status"},
	)
	m.registry.MustRegister(&m.resolutionsTotal)

	m.solverRuntimeSeconds = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solver_runtime_seconds",
			Help:    "Solver wall-clock runtime by backend",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"backend"},
	)
	m.registry.MustRegister(&m.solverRuntimeSeconds)

	m.publishDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "Draft publish duration",
		Buckets: prometheus.DefBuckets,
	})
	m.registry.MustRegister(m.publishDurationSeconds)

	m.activeSolverRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_solver_runs",
		Help: "Solver runs currently in flight",
	})
	m.registry.MustRegister(m.activeSolverRuns)

	return m
}

// RecordPreloadPass records assignments written by one preload pass.
func (m *Registry) RecordPreloadPass(pass string, count int) {
	m.preloadAssignmentsTotal.WithLabelValues(pass).Add(float64(count))
}

// RecordPublish records a publish outcome.
func (m *Registry) RecordPublish(outcome string, durationSeconds float64, rowErrors int) {
	m.draftsPublishedTotal.WithLabelValues(outcome).Inc()
	m.publishDurationSeconds.Observe(durationSeconds)
	m.publishRowErrorsTotal.Add(float64(rowErrors))
}

// RecordRollback records a successful rollback.
func (m *Registry) RecordRollback() {
	m.draftsRolledBackTotal.Inc()
}

// RecordResolution records an auto-resolution outcome.
func (m *Registry) RecordResolution(status string) {
	m.resolutionsTotal.WithLabelValues(status).Inc()
}

// RecordSolverRun records a completed solver run.
func (m *Registry) RecordSolverRun(backend string, runtimeSeconds float64) {
	m.solverRuntimeSeconds.WithLabelValues(backend).Observe(runtimeSeconds)
}

// SolverRunStarted increments the in-flight gauge.
func (m *Registry) SolverRunStarted() { m.activeSolverRuns.Inc() }

// SolverRunFinished decrements the in-flight gauge.
func (m *Registry) SolverRunFinished() { m.activeSolverRuns.Dec() }

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
