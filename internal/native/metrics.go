package native

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan sessions
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_native_scans_total",
			Help: "Total number of scan sessions by outcome",
		},
		[]string{"outcome"}, // outcome: decoded, cancelled, not_found, unavailable, error, busy
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanbridge_native_scan_duration_seconds",
			Help:    "Scan session duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	activeScans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanbridge_native_active_scans",
			Help: "Number of scan sessions currently running",
		},
	)

	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_native_frames_total",
			Help: "Total number of camera frames examined",
		},
		[]string{"result"}, // result: decoded, empty
	)

	// Encoding
	encodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_native_encodes_total",
			Help: "Total number of encode requests by status",
		},
		[]string{"status"},
	)
)
