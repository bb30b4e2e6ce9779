package room

import (
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// runGame drives one match from first round to game over. It is the only
// goroutine that advances phases; everything else requests work through
// channels or commits state under the room lock with a phase check.
func (r *Room) runGame() {
	defer r.wg.Done()

	ctx := logging.WithRoom(r.ctx, r.Code)
	logging.Info(ctx, "game started",
		zap.Int("total_players", r.TotalPlayers), zap.Int("max_humans", r.MaxHumans))

	for {
		r.beginRound()

		if !r.discussionPhase() {
			return
		}
		if !r.votingPhase() {
			return
		}
		if over := r.eliminationPhase(); over {
			return
		}
	}
}

// beginRound enters discussion for the next round and announces it. Event
// order is fixed: new_round (after round one), player_list, topic, phase.
func (r *Room) beginRound() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.BeginRound(game.RandomTopic(r.rng), r.clk.Now())
	metrics.PhaseTransitions.WithLabelValues(string(game.PhaseDiscussion)).Inc()

	if r.state.Round > 1 {
		r.broadcastLocked(Event{Type: EventNewRound, Payload: NewRoundPayload{Round: r.state.Round}})
	}
	r.broadcastLocked(Event{Type: EventPlayerList, Payload: r.playerListLocked()})
	r.broadcastLocked(Event{Type: EventTopic, Payload: TopicPayload{Topic: r.state.Topic, Round: r.state.Round}})
	r.broadcastLocked(Event{Type: EventPhase, Payload: PhasePayload{Phase: game.PhaseDiscussion, Round: r.state.Round}})

	logging.Info(r.ctx, "round started",
		zap.String("room_code", r.Code), zap.Int("round", r.state.Round), zap.String("topic", r.state.Topic))
}

// discussionPhase runs the discussion window. Decision passes are launched
// in their own goroutines so a slow provider never stalls the timer.
// Returns false when the room shut down mid-phase.
func (r *Room) discussionPhase() bool {
	timer := r.clk.NewTimer(r.cfg.DiscussionTime)
	defer timer.Stop()
	ticker := r.clk.NewTicker(r.cfg.ProactiveInterval)
	defer ticker.Stop()

	// Kick the opening exchange; the chat is empty, so agents get the first
	// word unless a human beats them to it.
	r.requestDecisionPass("")

	for {
		select {
		case <-r.ctx.Done():
			return false

		case <-timer.C():
			return true

		case <-ticker.C():
			r.mu.Lock()
			quiet := r.clk.Now().Sub(r.state.LastMessageTime) > r.cfg.ProactiveInterval
			inDiscussion := r.state.Phase == game.PhaseDiscussion
			r.mu.Unlock()
			if quiet && inDiscussion {
				r.wg.Add(1)
				go func() {
					defer r.wg.Done()
					r.decisionPass("")
				}()
			}

		case exclude := <-r.trigger:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.decisionPass(exclude)
			}()
		}
	}
}

// requestDecisionPass enqueues a decision pass without blocking; the
// discussion loop drains the channel. A full channel means passes are
// already backed up, so dropping the request loses nothing.
func (r *Room) requestDecisionPass(exclude string) {
	select {
	case r.trigger <- exclude:
	default:
	}
}

// votingPhase flips to voting, dispatches agent votes, and waits for either
// every active player to vote or the window to expire. Returns false when
// the room shut down mid-phase.
func (r *Room) votingPhase() bool {
	r.beginVoting()

	timer := r.clk.NewTimer(r.cfg.VotingTime)
	defer timer.Stop()

	select {
	case <-r.ctx.Done():
		return false
	case <-timer.C():
		// Missing votes count as abstentions.
		r.mu.Lock()
		r.votingOpen = false
		r.mu.Unlock()
		return true
	case <-r.votingDone:
		return true
	}
}

// beginVoting transitions discussion -> voting under the lock. Pending agent
// messages are discarded here; in-flight generation tasks notice the phase
// change on their own re-checks.
func (r *Room) beginVoting() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Phase = game.PhaseVoting
	metrics.PhaseTransitions.WithLabelValues(string(game.PhaseVoting)).Inc()

	if n := len(r.state.PendingAIMessages); n > 0 {
		logging.Info(r.ctx, "discarding pending agent messages at voting transition",
			zap.String("room_code", r.Code), zap.Int("count", n))
	}
	r.state.PendingAIMessages = nil

	// Any lingering typing indicator would leak that a message was in flight.
	for _, a := range r.state.ActiveAgents() {
		r.broadcastLocked(Event{Type: EventTyping, Payload: TypingPayload{PlayerID: a.ID, State: TypingStop}})
	}

	r.votingDone = make(chan struct{})
	r.votingOpen = true

	r.broadcastLocked(Event{Type: EventPhase, Payload: PhasePayload{Phase: game.PhaseVoting, Round: r.state.Round}})

	// Every active agent gets exactly one vote task. The processing set is
	// not consulted: an agent with a message generation still in flight will
	// drop it at its own phase re-check, and the vote must happen either way.
	for _, a := range r.state.ActiveAgents() {
		r.state.PendingAIVotes = append(r.state.PendingAIVotes, a.ID)
		r.wg.Add(1)
		go r.agentVoteTask(a.ID)
	}
}

// eliminationPhase tallies, eliminates, and either ends the game or hands
// control back for the next round. Returns true when the match is over.
func (r *Room) eliminationPhase() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Phase = game.PhaseElimination
	metrics.PhaseTransitions.WithLabelValues(string(game.PhaseElimination)).Inc()

	counts := game.TallyVotes(r.state.Votes)
	suspect, ok := game.PickSuspect(counts, r.rng)

	result := VotingResultPayload{Counts: counts}
	if !ok {
		result.NoElimination = true
		r.broadcastLocked(Event{Type: EventVotingResult, Payload: result})
		logging.Info(r.ctx, "no votes cast, skipping elimination",
			zap.String("room_code", r.Code), zap.Int("round", r.state.Round))
	} else {
		p := r.state.Players[suspect]
		p.Eliminated = true
		r.state.SelectedSuspect = suspect
		r.state.SuspectRole = p.Role

		result.SelectedSuspect = suspect
		result.SuspectRole = p.Role
		r.broadcastLocked(Event{Type: EventVotingResult, Payload: result})
		r.broadcastLocked(Event{Type: EventElimination, Payload: EliminationPayload{PlayerID: suspect, Role: p.Role}})

		logging.Info(r.ctx, "player eliminated", zap.String("room_code", r.Code),
			zap.String("player_id", suspect), zap.String("role", string(p.Role)), zap.Int("round", r.state.Round))
	}

	if winner := r.state.Outcome(r.cfg.RoundsToWin); winner != game.WinnerNone {
		r.finishGameLocked(winner)
		return true
	}
	return false
}

// finishGameLocked enters game_over and schedules the room for cleanup.
// Roles become public here and nowhere earlier.
func (r *Room) finishGameLocked(winner game.Winner) {
	r.state.Phase = game.PhaseGameOver
	r.state.Winner = winner
	r.status = game.StatusCompleted
	metrics.PhaseTransitions.WithLabelValues(string(game.PhaseGameOver)).Inc()

	r.broadcastLocked(Event{Type: EventPhase, Payload: PhasePayload{Phase: game.PhaseGameOver, Round: r.state.Round}})
	r.broadcastLocked(Event{Type: EventGameOver, Payload: GameOverPayload{
		Winner:          winner,
		SelectedSuspect: r.state.SelectedSuspect,
		SuspectRole:     r.state.SuspectRole,
		Round:           r.state.Round,
	}})

	logging.Info(r.ctx, "game over", zap.String("room_code", r.Code),
		zap.String("winner", string(winner)), zap.Int("rounds", r.state.Round))

	if r.onCompleted != nil {
		go r.onCompleted(r.Code)
	}
}
