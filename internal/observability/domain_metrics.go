package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translations_total",
			Help: "Total number of NL to SQL translations by provider and outcome state.",
		},
		[]string{"provider", "state"},
	)
	translationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_translation_latency_ms",
			Help:    "End to end translation latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)
	providerRequestLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_provider_request_latency_ms",
			Help:    "Model provider request latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"provider", "outcome"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_executions_total",
			Help: "Total number of executed queries by outcome.",
		},
		[]string{"outcome"},
	)
	queryExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_execution_latency_ms",
			Help:    "Database query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_rows_returned",
			Help:    "Number of rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)
	schemaLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_schema_loads_total",
			Help: "Total number of schema introspections by outcome.",
		},
		[]string{"outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_active_sessions",
			Help: "Current number of sessions held in the registry.",
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_exports_total",
			Help: "Total number of result exports by format.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		translationLatencyMs,
		providerRequestLatencyMs,
		queryExecutionsTotal,
		queryExecutionLatencyMs,
		queryRowsReturned,
		schemaLoadsTotal,
		activeSessions,
		exportsTotal,
	)
}

func ObserveTranslation(provider, state string, elapsed time.Duration) {
	translationsTotal.WithLabelValues(provider, state).Inc()
	translationLatencyMs.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

func ObserveProviderLatency(provider string, err error, elapsed time.Duration) {
	providerRequestLatencyMs.WithLabelValues(provider, outcomeLabel(err)).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecution(rows int, err error, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		return
	}
	queryExecutionLatencyMs.Observe(float64(elapsed.Milliseconds()))
	queryRowsReturned.Observe(float64(rows))
}

func IncrementSchemaLoad(err error) {
	schemaLoadsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func IncrementExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
