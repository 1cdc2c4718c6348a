package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_ws_connections_active",
		Help: "Number of active WebSocket connections.",
	})

	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_ws_messages_total",
			Help: "Total number of events queued to WebSocket clients, by event.",
		},
		[]string{"event"},
	)

	slowClientsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_ws_slow_clients_dropped_total",
		Help: "Total number of clients disconnected because their send buffer was full.",
	})
)
