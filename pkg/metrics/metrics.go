package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by path (jwt|google) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhive_auth_attempts_total",
			Help: "Total number of credential resolution attempts",
		},
		[]string{"path", "result"},
	)

	// AuthorizationDecisions counts guard evaluations and their outcome (allow|deny).
	AuthorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhive_authorization_decisions_total",
			Help: "Total number of authorization guard decisions",
		},
		[]string{"capability", "result"},
	)

	// RealtimeConnections tracks currently connected websocket clients.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskhive_realtime_connections",
			Help: "Number of connected realtime clients",
		},
	)

	// NotificationsFannedOut counts notification records created per action tag.
	NotificationsFannedOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhive_notifications_fanned_out_total",
			Help: "Notification records created by the mutation pipeline",
		},
		[]string{"type"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhive_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
