package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game server.
//
// Naming convention: namespace_subsystem_name
// - namespace: spot_the_bot (application-level grouping)
// - subsystem: websocket, room, llm (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spot_the_bot",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spot_the_bot",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of human participants per room
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "spot_the_bot",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of human participants in each room",
	}, []string{"room_code"})

	// EventsBroadcast counts every authoritative event fanned out to connections
	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spot_the_bot",
		Subsystem: "room",
		Name:      "events_total",
		Help:      "Total events broadcast to room connections",
	}, []string{"event_type"})

	// PhaseTransitions counts entries into each game phase
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spot_the_bot",
		Subsystem: "room",
		Name:      "phase_transitions_total",
		Help:      "Total phase transitions by target phase",
	}, []string{"phase"})

	// LateAgentOutputDropped counts agent output discarded by a phase check
	LateAgentOutputDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spot_the_bot",
		Subsystem: "room",
		Name:      "late_agent_output_dropped_total",
		Help:      "Agent output discarded because the phase changed mid-flight",
	}, []string{"layer"})

	// LLMRequestDuration tracks provider call latency per operation
	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spot_the_bot",
		Subsystem: "llm",
		Name:      "request_seconds",
		Help:      "Latency of LLM provider calls",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
	}, []string{"op"})

	// LLMFallbacks counts operations that fell back to canned behavior
	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spot_the_bot",
		Subsystem: "llm",
		Name:      "fallbacks_total",
		Help:      "LLM operations that used the deterministic fallback",
	}, []string{"op"})

	// CircuitBreakerState tracks breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "spot_the_bot",
		Subsystem: "llm",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
