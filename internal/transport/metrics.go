package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanbridge_transport_messages_total",
			Help: "Total number of websocket envelopes by side and direction",
		},
		[]string{"side", "direction"}, // side: client, host; direction: sent, received
	)

	pendingRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scanbridge_transport_pending_requests",
			Help: "Number of requests awaiting a response",
		},
		[]string{"side"},
	)
)
