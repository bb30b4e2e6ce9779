package room

import (
	"time"

	"github.com/spot-the-bot/backend/internal/v1/game"
)

// Event types a connection may see. The orchestrator is the only writer;
// per-connection delivery order matches enqueue order.
const (
	EventPlayerList     = "player_list"
	EventTopic          = "topic"
	EventPhase          = "phase"
	EventMessage        = "message"
	EventTyping         = "typing"
	EventVoted          = "voted"
	EventVotingResult   = "voting_result"
	EventElimination    = "elimination"
	EventGameOver       = "game_over"
	EventNewRound       = "new_round"
	EventRoomTerminated = "room_terminated"
	EventError          = "error"
)

// Typing indicator states.
const (
	TypingStart = "start"
	TypingStop  = "stop"
)

// Event is the wire envelope for every server-to-client frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PlayerInfo is the public view of a player. Roles are deliberately absent:
// a human's number must be indistinguishable from an agent's.
type PlayerInfo struct {
	ID         string `json:"id"`
	Eliminated bool   `json:"eliminated"`
	Voted      bool   `json:"voted"`
}

type PlayerListPayload struct {
	Players []PlayerInfo `json:"players"`
}

type TopicPayload struct {
	Topic string `json:"topic"`
	Round int    `json:"round"`
}

type PhasePayload struct {
	Phase game.Phase `json:"phase"`
	Round int        `json:"round"`
}

type MessagePayload struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingPayload struct {
	PlayerID string `json:"player_id"`
	State    string `json:"state"`
}

type VotedPayload struct {
	Voter string `json:"voter"`
}

type VotingResultPayload struct {
	Counts          map[string]int `json:"counts"`
	SelectedSuspect string         `json:"selected_suspect,omitempty"`
	SuspectRole     game.Role      `json:"suspect_role,omitempty"`
	NoElimination   bool           `json:"no_elimination,omitempty"`
}

type EliminationPayload struct {
	PlayerID string    `json:"player_id"`
	Role     game.Role `json:"role"`
}

type GameOverPayload struct {
	Winner          game.Winner `json:"winner"`
	SelectedSuspect string      `json:"selected_suspect,omitempty"`
	SuspectRole     game.Role   `json:"suspect_role,omitempty"`
	Round           int         `json:"round"`
}

type NewRoundPayload struct {
	Round int `json:"round"`
}

type RoomTerminatedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
