package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// JoinResult is what a successful join returns to the API layer.
type JoinResult struct {
	PlayerID      string
	CanStart      bool
	CurrentHumans []string
	MaxHumans     int
}

// LeaveAction reports what a leave did to the room.
type LeaveAction string

const (
	LeaveRemoved    LeaveAction = "removed"
	LeaveTerminated LeaveAction = "terminated"
)

// Join assigns the next free slot to a new human. The first joiner becomes
// the creator; filling the last human slot starts the match.
func (r *Room) Join() (JoinResult, error) {
	r.mu.Lock()

	if r.terminated {
		r.mu.Unlock()
		return JoinResult{}, game.ErrRoomNotFound
	}
	if r.status != game.StatusWaiting {
		r.mu.Unlock()
		return JoinResult{}, game.ErrRoomInProgress
	}

	n, err := r.slots.Acquire()
	if err != nil {
		r.mu.Unlock()
		return JoinResult{}, err
	}

	p := r.state.AddHuman(n)
	if r.creatorID == "" {
		r.creatorID = p.ID
	}

	humans := r.humanIDsLocked()
	metrics.RoomParticipants.WithLabelValues(r.Code).Set(float64(len(humans)))

	start := len(humans) == r.MaxHumans
	res := JoinResult{
		PlayerID:      p.ID,
		CanStart:      start,
		CurrentHumans: humans,
		MaxHumans:     r.MaxHumans,
	}

	r.broadcastLocked(Event{Type: EventPlayerList, Payload: r.playerListLocked()})

	if start {
		r.startLocked()
	}
	r.mu.Unlock()

	logging.Info(logging.WithRoom(r.ctx, r.Code), "player joined",
		zap.String("player_id", p.ID), zap.Bool("game_started", start))
	return res, nil
}

// startLocked flips the room to in_progress and launches the orchestrator.
func (r *Room) startLocked() {
	if r.started {
		return
	}
	r.started = true
	r.status = game.StatusInProgress
	r.wg.Add(1)
	go r.runGame()
}

// Leave removes a player. Creator-leaves-during-waiting destroys the room;
// otherwise the slot returns to the pool. Idempotent: a second leave for
// the same player is a no-op.
func (r *Room) Leave(playerID string) (LeaveAction, error) {
	r.mu.Lock()

	if r.terminated {
		r.mu.Unlock()
		return "", game.ErrRoomNotFound
	}

	p, ok := r.state.Players[playerID]
	if !ok || p.Role != game.RoleHuman {
		r.mu.Unlock()
		return LeaveRemoved, nil
	}

	if r.status == game.StatusWaiting && playerID == r.creatorID {
		r.mu.Unlock()
		r.terminate("creator left")
		if r.onEmpty != nil {
			r.onEmpty(r.Code)
		}
		return LeaveTerminated, nil
	}

	r.state.RemovePlayer(playerID)
	r.slots.Release(p.Number)

	humans := r.humanIDsLocked()
	metrics.RoomParticipants.WithLabelValues(r.Code).Set(float64(len(humans)))
	r.broadcastLocked(Event{Type: EventPlayerList, Payload: r.playerListLocked()})
	empty := len(humans) == 0
	r.mu.Unlock()

	logging.Info(logging.WithRoom(r.ctx, r.Code), "player left", zap.String("player_id", playerID))

	if empty {
		r.terminate("room empty")
		if r.onEmpty != nil {
			r.onEmpty(r.Code)
		}
	}
	return LeaveRemoved, nil
}

// HumanMessage commits a human chat message. Rejected outside discussion;
// the phase is validated under the same lock that appends to history.
func (r *Room) HumanMessage(playerID, text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty message", game.ErrInvalidArgument)
	}

	r.mu.Lock()
	if r.terminated {
		r.mu.Unlock()
		return game.ErrRoomNotFound
	}
	p, ok := r.state.Players[playerID]
	if !ok || p.Role != game.RoleHuman {
		r.mu.Unlock()
		return game.ErrUnknownPlayer
	}
	if r.state.Phase != game.PhaseDiscussion {
		r.mu.Unlock()
		return fmt.Errorf("%w: messages are only accepted during discussion", game.ErrPhaseViolation)
	}
	if p.Eliminated {
		r.mu.Unlock()
		return fmt.Errorf("%w: eliminated players cannot chat", game.ErrPhaseViolation)
	}

	now := r.clk.Now()
	r.state.Chat = append(r.state.Chat, game.ChatMessage{Sender: playerID, Text: text, Timestamp: now})
	r.state.LastMessageTime = now
	r.broadcastLocked(Event{Type: EventMessage, Payload: MessagePayload{Sender: playerID, Text: text, Timestamp: now}})
	r.mu.Unlock()

	// A human message is one of the two discussion tick drivers.
	r.requestDecisionPass("")
	return nil
}

// HumanVote commits a human vote. Violations surface both as an error
// return (REST) and as an error event to the voter's connections (WS).
func (r *Room) HumanVote(playerID, targetID string) error {
	r.mu.Lock()
	if r.terminated {
		r.mu.Unlock()
		return game.ErrRoomNotFound
	}
	p, ok := r.state.Players[playerID]
	if !ok || p.Role != game.RoleHuman {
		r.mu.Unlock()
		return game.ErrUnknownPlayer
	}
	if r.state.Phase != game.PhaseVoting {
		r.mu.Unlock()
		return fmt.Errorf("%w: votes are only accepted during voting", game.ErrPhaseViolation)
	}
	if reason := r.state.ValidateVote(playerID, targetID); reason != "" {
		r.sendToPlayerLocked(playerID, Event{Type: EventError, Payload: ErrorPayload{Error: reason, Code: "PhaseViolation"}})
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", game.ErrPhaseViolation, reason)
	}

	r.commitVoteLocked(playerID, targetID)
	r.mu.Unlock()
	return nil
}

// commitVoteLocked records a validated vote and signals the voting window
// when the last active player has voted. Caller must hold r.mu and have
// validated the vote.
func (r *Room) commitVoteLocked(voterID, targetID string) {
	r.state.Votes[voterID] = targetID
	r.state.Players[voterID].Voted = true
	r.broadcastLocked(Event{Type: EventVoted, Payload: VotedPayload{Voter: voterID}})

	if r.votingOpen && len(r.state.Votes) >= len(r.state.ActivePlayers()) {
		r.votingOpen = false
		close(r.votingDone)
	}
}

// StateSnapshot is the authoritative read-only view for polling clients.
type StateSnapshot struct {
	RoomCode      string             `json:"room_code"`
	RoomName      string             `json:"room_name"`
	Status        game.Status        `json:"status"`
	Phase         game.Phase         `json:"phase"`
	Round         int                `json:"round"`
	Topic         string             `json:"topic"`
	Players       []PlayerInfo       `json:"players"`
	Chat          []game.ChatMessage `json:"chat"`
	VotesCast     int                `json:"votes_cast"`
	CurrentHumans []string           `json:"current_humans"`
	MaxHumans     int                `json:"max_humans"`
	TotalPlayers  int                `json:"total_players"`
	Winner        game.Winner        `json:"winner,omitempty"`
	Suspect       string             `json:"selected_suspect,omitempty"`
	SuspectRole   game.Role          `json:"suspect_role,omitempty"`
}

// Snapshot assembles an immutable copy of the visible state under the lock.
func (r *Room) Snapshot() StateSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := StateSnapshot{
		RoomCode:      r.Code,
		RoomName:      r.Name,
		Status:        r.status,
		Phase:         r.state.Phase,
		Round:         r.state.Round,
		Topic:         r.state.Topic,
		Players:       r.playerListLocked().Players,
		Chat:          append([]game.ChatMessage(nil), r.state.Chat...),
		VotesCast:     len(r.state.Votes),
		CurrentHumans: r.humanIDsLocked(),
		MaxHumans:     r.MaxHumans,
		TotalPlayers:  r.TotalPlayers,
	}
	if r.state.Phase == game.PhaseGameOver {
		snap.Winner = r.state.Winner
		snap.Suspect = r.state.SelectedSuspect
		snap.SuspectRole = r.state.SuspectRole
	}
	return snap
}
