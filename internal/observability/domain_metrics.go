package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	schemaBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_schema_builds_total",
			Help: "Total number of schema introspection runs by outcome.",
		},
		[]string{"outcome"},
	)
	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_generation_requests_total",
			Help: "Total number of SQL generation requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	generationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_generation_latency_ms",
			Help:    "Model round-trip latency for SQL generation in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_executions_total",
			Help: "Total number of generated query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_execution_latency_ms",
			Help:    "MySQL query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_result_rows",
			Help:    "Number of rows returned by executed queries.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_active_sessions",
			Help: "Current number of open database sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		schemaBuildsTotal,
		generationRequestsTotal,
		generationLatencyMs,
		queryExecutionsTotal,
		queryExecutionLatencyMs,
		queryResultRows,
		activeSessions,
	)
}

func outcomeLabel(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func ObserveSchemaBuild(err error) {
	schemaBuildsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

func ObserveGeneration(provider string, elapsed time.Duration, err error) {
	generationRequestsTotal.WithLabelValues(provider, outcomeLabel(err)).Inc()
	generationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecution(rows int, elapsed time.Duration, err error) {
	queryExecutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	queryExecutionLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if err == nil {
		queryResultRows.Observe(float64(rows))
	}
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
