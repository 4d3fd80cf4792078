// Package metrics holds the Prometheus instruments for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Instruments are usable (but unregistered) without Init, so domain packages
// can increment them freely under test.
var (
	// EventsTotal counts processed events by type and outcome
	// (accepted, rejected, duplicate, error).
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dotserver",
			Name:      "events_total",
			Help:      "Total number of processed telemetry events.",
		},
		[]string{"event_type", "outcome"},
	)

	// EventDuration is the end-to-end handling time per event type.
	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dotserver",
			Name:      "event_duration_seconds",
			Help:      "Histogram of event handling durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"event_type"},
	)

	// UsersTotal counts reconciliations by outcome (created, updated).
	UsersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dotserver",
			Name:      "users_total",
			Help:      "Total number of user reconciliations.",
		},
		[]string{"outcome"},
	)

	// CacheErrors counts swallowed session-cache failures.
	CacheErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dotserver",
			Name:      "cache_errors_total",
			Help:      "Total number of non-fatal session cache failures.",
		},
	)
)

// Init registers the pipeline metrics with the default registerer. Call once
// at startup.
func Init() {
	prometheus.MustRegister(EventsTotal, EventDuration, UsersTotal, CacheErrors)
}
