package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_opened_total",
			Help: "Total websocket connections accepted after authentication",
		},
	)

	ConnectionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_closed_total",
			Help: "Total websocket connections torn down",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_auth_failures_total",
			Help: "Total connection handshakes rejected",
		},
		[]string{"reason"}, // "missing_token" or "invalid_token"
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_received_total",
			Help: "Total inbound client events by type",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_dropped_total",
			Help: "Total inbound events dropped as malformed or failed",
		},
		[]string{"event"},
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_stored_total",
			Help: "Total messages persisted",
		},
	)

	FanoutDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_fanout_deliveries_total",
			Help: "Total events delivered to individual connections",
		},
	)

	FanoutDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_fanout_dropped_total",
			Help: "Total deliveries dropped on dead connections",
		},
	)
)
