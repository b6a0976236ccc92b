package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Caller misuse
	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_bridge_rejected_total",
			Help: "Total number of bridge calls rejected before dispatch",
		},
		[]string{"operation"},
	)

	// Channel traffic
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_channel_dispatch_total",
			Help: "Total number of operations dispatched to the native channel",
		},
		[]string{"operation"},
	)

	resultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_channel_results_total",
			Help: "Total number of channel resolutions",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	resultDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanbridge_channel_resolution_seconds",
			Help:    "Time from dispatch to resolution",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	pendingCalls = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scanbridge_channel_pending",
			Help: "Number of dispatched operations not yet resolved",
		},
		[]string{"operation"},
	)
)
