// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Screener outcomes used as the "result" label.
const (
	ScreenerSent      = "sent"
	ScreenerSkipped   = "skipped"
	ScreenerDuplicate = "duplicate"
	ScreenerFailed    = "failed"
)

var (
	Swipes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicmatch_swipes_total",
			Help: "Swipes accepted, by swipe type",
		},
		[]string{"type"},
	)

	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinicmatch_matches_created_total",
			Help: "Matches created; requests that found an existing match are not counted",
		},
	)

	ScreenerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicmatch_screener_messages_total",
			Help: "Auto-screener attempts by outcome (sent, skipped, duplicate, failed)",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicmatch_http_requests_total",
			Help: "HTTP requests by method, route template and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinicmatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicmatch_ai_requests_total",
			Help: "LLM generation requests by kind (bio, questions) and result",
		},
		[]string{"kind", "result"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinicmatch_jobs_processed_total",
			Help: "Background jobs handled by type and result (done, retry, dead_letter)",
		},
		[]string{"type", "result"},
	)
)
