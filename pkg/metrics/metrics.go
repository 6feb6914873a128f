// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks status server request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corpusgen_http_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total status server requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_http_requests_total",
			Help: "Total status server requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks content generation latency per provider and kind.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corpusgen_generation_duration_seconds",
			Help:    "Structured content generation duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "kind"},
	)

	// GenerationsTotal tracks generation outcomes.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_generations_total",
			Help: "Total structured content generation calls",
		},
		[]string{"provider", "kind", "status"},
	)

	// GenerationRetries tracks backoff sleeps caused by rate limiting.
	GenerationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_generation_retries_total",
			Help: "Rate-limited generation attempts that were retried",
		},
		[]string{"provider"},
	)

	// TokensTotal tracks tokens reported by the provider.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// ArtifactsTotal tracks persisted artifacts by kind.
	ArtifactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_artifacts_total",
			Help: "Total artifacts written to the corpus",
		},
		[]string{"kind"},
	)

	// SchedulerPasses tracks scheduling passes over the scenario list.
	SchedulerPasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corpusgen_scheduler_passes_total",
			Help: "Total scheduling passes",
		},
	)

	// SchedulerUnits tracks realized scenario units by outcome.
	SchedulerUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgen_scheduler_units_total",
			Help: "Scenario units dispatched to workers",
		},
		[]string{"status"},
	)

	// SchedulerProgress tracks the running artifact total of the current run.
	SchedulerProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpusgen_scheduler_progress",
			Help: "Artifacts produced so far in the current run",
		},
	)

	// SSEConnections tracks open progress streams on the status server.
	SSEConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpusgen_sse_connections",
			Help: "Number of active progress stream connections",
		},
	)

	// PublishFailures tracks artifact events that could not be published.
	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corpusgen_publish_failures_total",
			Help: "Artifact events that failed to publish",
		},
	)
)

// RecordRequest records metrics for a status server request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for one generation call.
func RecordGeneration(provider, kind, status string, duration float64, tokensIn, tokensOut int) {
	GenerationDuration.WithLabelValues(provider, kind).Observe(duration)
	GenerationsTotal.WithLabelValues(provider, kind, status).Inc()
	TokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	TokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordArtifact increments the artifact counter for kind.
func RecordArtifact(kind string) {
	ArtifactsTotal.WithLabelValues(kind).Inc()
}

// IncrementSSEConnections increments the active progress stream gauge.
func IncrementSSEConnections() {
	SSEConnections.Inc()
}

// DecrementSSEConnections decrements the active progress stream gauge.
func DecrementSSEConnections() {
	SSEConnections.Dec()
}
