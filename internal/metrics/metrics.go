// Package metrics holds the prometheus collectors shared by the providers,
// the grid cache and the event engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "weather_events"

// Outcome labels for ProviderRequests.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// ProviderRequests counts provider fetches by provider and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Provider fetch attempts partitioned by provider and outcome.",
	}, []string{"provider", "outcome"})

	// GridCacheLookups counts grid cache reads by result (hit, miss, stale).
	GridCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grid_cache_lookups_total",
		Help:      "Supplemental grid cache lookups partitioned by result.",
	}, []string{"result"})

	// EventsStarted counts weather events entering the active set.
	EventsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_started_total",
		Help:      "Weather events started partitioned by type and severity.",
	}, []string{"type", "severity"})

	// ActiveEvents reports the size of the active event set after each update.
	ActiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_events",
		Help:      "Number of weather events currently active.",
	})

	// PollDuration observes how long a full aggregator poll takes.
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of aggregated weather polls.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveProvider records the outcome of one provider call.
func ObserveProvider(provider string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
}
