// Package metrics exposes Prometheus counters and histograms for the
// taxonomy workflows. Collectors register with the default registry,
// which /metrics serves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kopa"

var (
	// suggestionsCreatedTotal counts accepted tag suggestions.
	suggestionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "taxonomy",
		Name:      "suggestions_created_total",
		Help:      "Tag suggestions accepted into the review queue",
	})

	// suggestionsRejectedTotal counts submissions refused before insert.
	// Labels: reason (quota, duplicate, validation)
	suggestionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "taxonomy",
		Name:      "suggestions_rejected_total",
		Help:      "Tag suggestion submissions refused by reason",
	}, []string{"reason"})

	// suggestionsResolvedTotal counts moderation decisions.
	// Labels: action (approve, deny, merge)
	suggestionsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "taxonomy",
		Name:      "suggestions_resolved_total",
		Help:      "Tag suggestions resolved by moderation action",
	}, []string{"action"})

	// searchRequestsTotal counts tag searches.
	// Labels: source (index, store)
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Tag searches by candidate source",
	}, []string{"source"})

	// searchDurationSeconds measures search latency including ranking.
	searchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Tag search latency including candidate fetch and ranking",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// searchIndexFailuresTotal counts index errors that fell back to the store.
	searchIndexFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "index_failures_total",
		Help:      "Candidate index failures that fell back to the store",
	})

	// notificationPushFailuresTotal counts notifications that were stored
	// but could not be pushed to a live stream.
	notificationPushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "push_failures_total",
		Help:      "Persisted notifications that could not be pushed live",
	})

	// pendingCountDriftTotal counts resolutions that found the submitter's
	// pending counter already at zero.
	pendingCountDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "taxonomy",
		Name:      "pending_count_drift_total",
		Help:      "Resolutions whose pending counter was already zero",
	})
)

// Source labels for RecordSearch.
const (
	SourceIndex = "index"
	SourceStore = "store"
)

// RecordSuggestionCreated records an accepted suggestion.
func RecordSuggestionCreated() {
	suggestionsCreatedTotal.Inc()
}

// RecordSuggestionRejected records a refused submission.
func RecordSuggestionRejected(reason string) {
	suggestionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordSuggestionResolved records a moderation decision.
func RecordSuggestionResolved(action string) {
	suggestionsResolvedTotal.WithLabelValues(action).Inc()
}

// RecordSearch records one search served from source.
func RecordSearch(source string, elapsed time.Duration) {
	searchRequestsTotal.WithLabelValues(source).Inc()
	searchDurationSeconds.Observe(elapsed.Seconds())
}

// RecordSearchIndexFailure records a fallback from the index to the store.
func RecordSearchIndexFailure() {
	searchIndexFailuresTotal.Inc()
}

// RecordNotificationPushFailure records a notification that was not pushed.
func RecordNotificationPushFailure() {
	notificationPushFailuresTotal.Inc()
}

// RecordPendingCountDrift records a decrement that found the counter at zero.
func RecordPendingCountDrift() {
	pendingCountDriftTotal.Inc()
}
