// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsStarted  *prometheus.CounterVec
	SimulationsFinished *prometheus.CounterVec
	SimulationDuration  *prometheus.HistogramVec
	SimulationsRunning  prometheus.Gauge
	IterationsRun       *prometheus.CounterVec
	ResampleFallbacks   *prometheus.CounterVec
	RiskQueries         *prometheus.CounterVec
	SimulationsSwept    prometheus.Counter

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCompletedSimulation prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "provision_risk_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		SimulationsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "started_total",
			Help:      "Total number of simulations started by method",
		}, []string{"method"}),
		SimulationsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "finished_total",
			Help:      "Total number of simulations finished by method and status",
		}, []string{"method", "status"}),
		SimulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"method"}),
		SimulationsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "running",
			Help:      "Number of simulations currently running",
		}),
		IterationsRun: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "iterations_total",
			Help:      "Total number of resampling iterations by method",
		}, []string{"method"}),
		ResampleFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "resample_fallbacks_total",
			Help:      "Iterations that used the original ledger after a resample failure",
		}, []string{"method"}),
		RiskQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "queries_total",
			Help:      "Total number of risk lookups by direction",
		}, []string{"direction"}),
		SimulationsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "swept_total",
			Help:      "Simulations failed by the stale-run sweeper",
		}),

		// HTTP metrics
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastCompletedSimulation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_simulation_timestamp",
			Help:      "Unix timestamp of the last completed simulation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSimulationStarted increments the started counter and running gauge.
func RecordSimulationStarted(method string) {
	DefaultMetrics.SimulationsStarted.WithLabelValues(method).Inc()
	DefaultMetrics.SimulationsRunning.Inc()
}

// RecordSimulationFinished records a terminal simulation outcome.
func RecordSimulationFinished(method, status string, durationSeconds float64, iterations, fallbacks int) {
	DefaultMetrics.SimulationsRunning.Dec()
	DefaultMetrics.SimulationsFinished.WithLabelValues(method, status).Inc()
	DefaultMetrics.SimulationDuration.WithLabelValues(method).Observe(durationSeconds)
	DefaultMetrics.IterationsRun.WithLabelValues(method).Add(float64(iterations))
	DefaultMetrics.ResampleFallbacks.WithLabelValues(method).Add(float64(fallbacks))
	if status == "completed" {
		DefaultMetrics.LastCompletedSimulation.SetToCurrentTime()
	}
}

// RecordRiskQuery increments the risk lookup counter.
func RecordRiskQuery(direction string) {
	DefaultMetrics.RiskQueries.WithLabelValues(direction).Inc()
}

// RecordSwept increments the sweeper counter.
func RecordSwept(n int) {
	DefaultMetrics.SimulationsSwept.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request duration.
func RecordHTTPRequest(route, method, code string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method, code).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
