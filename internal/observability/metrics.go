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
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec

	// Transaction metrics
	TransactionsSubmitted prometheus.Counter
	TransactionsConfirmed prometheus.Counter
	TransactionsFailed    *prometheus.CounterVec
	ConfirmationLatency   prometheus.Histogram

	// Step metrics
	StepDuration *prometheus.HistogramVec
	StepFailures *prometheus.CounterVec

	// Run metrics
	RunsTotal *prometheus.CounterVec

	// Journal metrics
	JournalWriteDuration *prometheus.HistogramVec
	JournalWriteErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_metadata_lab"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Total number of failed RPC calls",
		}, []string{"method"}),

		TransactionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "submitted_total",
			Help:      "Total number of transactions submitted",
		}),
		TransactionsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "confirmed_total",
			Help:      "Total number of transactions confirmed without error",
		}),
		TransactionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "failed_total",
			Help:      "Total number of transactions that failed by reason",
		}, []string{"reason"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to confirmation in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		StepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "step_failures_total",
			Help:      "Total number of failed steps",
		}, []string{"step"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of runs by final status",
		}, []string{"status"}),

		JournalWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "write_duration_seconds",
			Help:      "Run journal write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		JournalWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "write_errors_total",
			Help:      "Total number of run journal write errors",
		}, []string{"backend", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError increments the RPC error counter for method.
func RecordRPCError(method string) {
	DefaultMetrics.RPCErrors.WithLabelValues(method).Inc()
}

// RecordTransactionSubmitted increments the submitted transactions counter.
func RecordTransactionSubmitted() {
	DefaultMetrics.TransactionsSubmitted.Inc()
}

// RecordTransactionConfirmed records a successful confirmation and its latency.
func RecordTransactionConfirmed(seconds float64) {
	DefaultMetrics.TransactionsConfirmed.Inc()
	DefaultMetrics.ConfirmationLatency.Observe(seconds)
}

// RecordTransactionFailed records a failed transaction.
func RecordTransactionFailed(reason string) {
	DefaultMetrics.TransactionsFailed.WithLabelValues(reason).Inc()
}

// RecordStep records step duration and failure.
func RecordStep(step string, seconds float64, err error) {
	DefaultMetrics.StepDuration.WithLabelValues(step).Observe(seconds)
	if err != nil {
		DefaultMetrics.StepFailures.WithLabelValues(step).Inc()
	}
}

// RecordRun records a finished run.
func RecordRun(status string) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
}

// RecordJournalWrite records run journal write metrics.
func RecordJournalWrite(backend, operation string, seconds float64, err error) {
	DefaultMetrics.JournalWriteDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.JournalWriteErrors.WithLabelValues(backend, operation).Inc()
	}
}
