// Package game holds the pure domain model for a social-deduction match:
// players, phases, chat, votes, the elimination tally and the win predicate.
// Everything here is lock-free; the room package owns synchronization.
package game

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the current stage of the round state machine.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseDiscussion  Phase = "discussion"
	PhaseVoting      Phase = "voting"
	PhaseElimination Phase = "elimination"
	PhaseGameOver    Phase = "game_over"
)

// Role distinguishes humans from LLM-driven agents.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Winner is the game outcome.
type Winner string

const (
	WinnerNone  Winner = ""
	WinnerHuman Winner = "human"
	WinnerAI    Winner = "ai"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Domain error set. The API layer maps these onto wire error codes.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomInProgress  = errors.New("room is in progress")
	ErrPhaseViolation  = errors.New("phase violation")
	ErrUnknownPlayer   = errors.New("unknown player")
)

// Player is a single numbered participant. Humans and agents draw their
// numbers from one shuffled pool so an agent's id is indistinguishable
// from a human's.
type Player struct {
	ID          string `json:"id"`
	Number      int    `json:"-"`
	Role        Role   `json:"-"`
	Eliminated  bool   `json:"eliminated"`
	Voted       bool   `json:"voted"`
	Personality string `json:"-"`
}

// ChatMessage is one committed chat entry.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerName renders the visible name for a slot number, e.g. "Player 3".
func PlayerName(n int) string {
	return fmt.Sprintf("Player %d", n)
}
