package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plotmeter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plotmeter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	measurementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plotmeter_measurements_total",
			Help: "Total number of completed measurements",
		},
		[]string{"mode", "unit"}, // mode: image, points
	)

	boundariesNotFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plotmeter_boundaries_not_found_total",
			Help: "Image measurements in which no boundary was detected",
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plotmeter_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plotmeter_rate_limit_hits_total",
			Help: "Total number of rejected requests per limit",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plotmeter_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plotmeter_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)
