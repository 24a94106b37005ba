// Package telemetry holds the Prometheus collectors for the revision scheduler.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rolloverAdvanced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prephub_rollover_advanced_total",
			Help: "Items moved or re-dated by bucket rollover, by step",
		},
		[]string{"step"},
	)

	reconcileActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prephub_reconcile_actions_total",
			Help: "Changes made by submission reconciliation, by action",
		},
		[]string{"action"},
	)

	feedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prephub_feed_requests_total",
			Help: "Outbound submission feed requests, by status",
		},
		[]string{"status"},
	)

	feedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prephub_feed_request_duration_seconds",
			Help:    "Submission feed request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	feedCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prephub_feed_cache_total",
			Help: "Submission feed cache lookups, by result",
		},
		[]string{"result"},
	)

	archiveAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prephub_archive_items_added_total",
			Help: "Items newly written to monthly archives",
		},
	)

	stepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prephub_step_failures_total",
			Help: "Best-effort pipeline steps that failed and were skipped, by step",
		},
		[]string{"step"},
	)
)

// RecordRollover counts items changed by a rollover step.
func RecordRollover(step string, n int64) {
	if n > 0 {
		rolloverAdvanced.WithLabelValues(step).Add(float64(n))
	}
}

// RecordReconcile counts one reconciliation action.
func RecordReconcile(action string) {
	reconcileActions.WithLabelValues(action).Inc()
}

// RecordFeedRequest records an outbound feed call.
func RecordFeedRequest(success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	feedRequests.WithLabelValues(status).Inc()
	feedDuration.Observe(d.Seconds())
}

// RecordFeedCache records a cache hit or miss.
func RecordFeedCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	feedCache.WithLabelValues(result).Inc()
}

// RecordArchiveAdded counts newly archived items.
func RecordArchiveAdded(n int) {
	if n > 0 {
		archiveAdded.Add(float64(n))
	}
}

// RecordStepFailure counts a skipped best-effort step.
func RecordStepFailure(step string) {
	stepFailures.WithLabelValues(step).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
