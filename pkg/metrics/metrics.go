// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depths_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depths_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// IngestedTotal counts raw messages stored, by source.
	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depths_ingested_messages_total",
			Help: "Raw messages stored",
		},
		[]string{"source", "status"},
	)

	// GrouperRunsTotal counts grouping passes by outcome.
	GrouperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depths_grouper_runs_total",
			Help: "Grouping passes",
		},
		[]string{"status"},
	)

	// GrouperRunDuration tracks the wall time of a grouping pass.
	GrouperRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depths_grouper_run_duration_seconds",
			Help:    "Grouping pass duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MessagesGroupedTotal counts raw messages marked processed.
	MessagesGroupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "depths_messages_grouped_total",
			Help: "Raw messages consumed by the grouper",
		},
	)

	// ConversationsUpsertedTotal counts conversation writes by kind.
	ConversationsUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depths_conversations_upserted_total",
			Help: "Conversation rows inserted or updated",
		},
		[]string{"op"},
	)

	// HistoryLookupErrorsTotal counts swallowed history failures.
	HistoryLookupErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depths_history_lookup_errors_total",
			Help: "History lookups that failed against the store or cache",
		},
		[]string{"op"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGrouperRun records the outcome of one grouping pass.
func RecordGrouperRun(status string, duration float64, grouped int) {
	GrouperRunsTotal.WithLabelValues(status).Inc()
	GrouperRunDuration.Observe(duration)
	MessagesGroupedTotal.Add(float64(grouped))
}
