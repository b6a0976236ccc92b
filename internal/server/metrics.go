package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanbridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scan requests
	scanTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scanbridge_http_scan_timeouts_total",
			Help: "Total number of scan requests cancelled after their wait expired",
		},
	)

	// Decoding
	decodedBarcodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanbridge_decoded_barcodes",
			Help:    "Number of barcodes found per decode request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanbridge_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanbridge_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)
