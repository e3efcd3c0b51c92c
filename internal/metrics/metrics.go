package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Currently open chat connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total accepted chat connections",
		},
	)

	// Broadcast metrics
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_posted_total",
			Help: "Total messages persisted and broadcast",
		},
		[]string{"source"}, // "websocket" or "http"
	)

	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_events_total",
			Help: "Total events fanned out to rooms",
		},
		[]string{"type"}, // "message" or "presence"
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Subscribers dropped because their send queue was unavailable",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_dropped_total",
			Help: "Inbound messages dropped before broadcast",
		},
		[]string{"reason"}, // "malformed" or "rate_limited"
	)
)
