// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_provider_calls_total",
			Help: "Places provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partner_provider_call_duration_seconds",
			Help:    "Duration of places provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_search_runs_total",
			Help: "Search runs by final status",
		},
		[]string{"status"},
	)

	SearchRadius = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "partner_search_final_radius_meters",
			Help:    "Radius reached when a search run stopped",
			Buckets: prometheus.LinearBuckets(5000, 5000, 10),
		},
	)

	CandidatesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partner_candidates_accepted_total",
			Help: "Candidates accepted into search results",
		},
	)

	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_candidates_rejected_total",
			Help: "Candidates rejected by the filter or deduplicator, by reason",
		},
		[]string{"reason"},
	)

	Descriptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_descriptions_total",
			Help: "AI description attempts by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	NameRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_name_recoveries_total",
			Help: "Website name recovery outcomes, plus page cache hits as \"cached\"",
		},
		[]string{"outcome"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partner_jobs_active",
			Help: "Asynchronous search jobs currently running",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_http_requests_total",
			Help: "HTTP API requests by route pattern, method and status code",
		},
		[]string{"route", "method", "code"},
	)
)

// ObserveProviderCall records one provider call.
func ObserveProviderCall(operation, outcome string, started time.Time) {
	ProviderCalls.WithLabelValues(operation, outcome).Inc()
	ProviderLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
