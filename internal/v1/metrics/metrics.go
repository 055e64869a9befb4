// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSockets tracks the number of open WebSocket connections.
	ActiveSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eratosthenes",
		Subsystem: "sockets",
		Name:      "active",
		Help:      "Number of currently open WebSocket connections.",
	})

	// ActiveRooms tracks the number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eratosthenes",
		Subsystem: "rooms",
		Name:      "active",
		Help:      "Number of rooms currently held in the store.",
	})

	// RoomMembers tracks membership per room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "eratosthenes",
		Subsystem: "rooms",
		Name:      "members",
		Help:      "Number of members per room.",
	}, []string{"room_id"})

	// WebsocketEvents counts processed client events by type and outcome.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eratosthenes",
		Subsystem: "sockets",
		Name:      "events_total",
		Help:      "Client WebSocket events processed, by event type and status.",
	}, []string{"event_type", "status"})

	// DroppedMessages counts outbound messages discarded because a socket's
	// send queue was full.
	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eratosthenes",
		Subsystem: "sockets",
		Name:      "dropped_messages_total",
		Help:      "Outbound messages dropped due to a full send queue.",
	})

	// RoundsFinished counts finished rounds, split by whether they ended a game.
	RoundsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eratosthenes",
		Subsystem: "game",
		Name:      "rounds_finished_total",
		Help:      "Rounds finished, by whether the round completed a game.",
	}, []string{"game_finished"})
)

// IncConnection records a new WebSocket connection.
func IncConnection() {
	ActiveSockets.Inc()
}

// DecConnection records a closed WebSocket connection.
func DecConnection() {
	ActiveSockets.Dec()
}
