package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/agents"
	"github.com/spot-the-bot/backend/internal/v1/game"
	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// Drop points for late agent output. A generation that outlives its phase
// can be caught at several places; the label records which check fired.
const (
	dropPreGeneration = "pre_generation"
	dropPreTyping     = "pre_typing"
	dropPreCommit     = "pre_commit"
)

func (r *Room) historyLocked() []game.ChatMessage {
	return append([]game.ChatMessage(nil), r.state.Chat...)
}

// roundHistoryLocked returns only the current round's messages.
func (r *Room) roundHistoryLocked() []game.ChatMessage {
	var out []game.ChatMessage
	for _, m := range r.state.Chat {
		if !m.Timestamp.Before(r.state.RoundStartTime) {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) messagesSentThisRoundLocked(playerID string) int {
	n := 0
	for _, m := range r.roundHistoryLocked() {
		if m.Sender == playerID {
			n++
		}
	}
	return n
}

func (r *Room) pendingMessageLocked(agentID string) bool {
	for _, id := range r.state.PendingAIMessages {
		if id == agentID {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// decisionPass asks eligible agents whether they want to speak and launches
// message tasks for the ones that do, capped per pass. Agents are skipped
// when excluded, already generating, already queued, the last sender, or
// inside their cooldown.
func (r *Room) decisionPass(exclude string) {
	r.mu.Lock()
	if r.state.Phase != game.PhaseDiscussion {
		r.mu.Unlock()
		return
	}

	now := r.clk.Now()
	lastSender := r.state.LastSender()
	history := r.historyLocked()
	topic := r.state.Topic

	type candidate struct {
		req agents.DecideRequest
	}
	var candidates []candidate
	for _, a := range r.state.ActiveAgents() {
		if a.ID == exclude || a.ID == lastSender {
			continue
		}
		if r.processing.Has(a.ID) || r.pendingMessageLocked(a.ID) {
			continue
		}
		if last, ok := r.state.LastMessageOf(a.ID); ok && now.Sub(last) < r.cfg.MessageCooldown {
			continue
		}
		candidates = append(candidates, candidate{req: agents.DecideRequest{
			AgentID:      a.ID,
			Personality:  a.Personality,
			Topic:        topic,
			History:      history,
			MessagesSent: r.messagesSentThisRoundLocked(a.ID),
		}})
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return
	}

	// Decisions run concurrently; order within the pass does not matter.
	results := make([]bool, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, req agents.DecideRequest) {
			defer wg.Done()
			results[i] = r.provider.Decide(r.ctx, req).ShouldRespond
		}(i, c.req)
	}
	wg.Wait()

	var chosen []string
	for i, c := range candidates {
		if results[i] {
			chosen = append(chosen, c.req.AgentID)
		}
	}
	if len(chosen) > r.cfg.MaxConcurrentAgentResponses {
		chosen = chosen[:r.cfg.MaxConcurrentAgentResponses]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != game.PhaseDiscussion {
		return
	}
	for _, id := range chosen {
		// The decisions ran unlocked, so another pass may have claimed the
		// agent in the meantime.
		if r.processing.Has(id) || r.pendingMessageLocked(id) {
			continue
		}
		r.state.PendingAIMessages = append(r.state.PendingAIMessages, id)
		r.processing.Insert(id)
		r.wg.Add(1)
		go r.agentMessageTask(id)
	}
}

// agentMessageTask generates and commits one agent message. The phase is
// re-checked before generation, before the typing indicator, and before the
// commit, because the LLM call and the typing delay both outlive any lock.
func (r *Room) agentMessageTask(agentID string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		r.processing.Delete(agentID)
		r.state.PendingAIMessages = removeID(r.state.PendingAIMessages, agentID)
		r.mu.Unlock()
	}()

	r.mu.Lock()
	if r.state.Phase != game.PhaseDiscussion {
		r.mu.Unlock()
		metrics.LateAgentOutputDropped.WithLabelValues(dropPreGeneration).Inc()
		return
	}
	a := r.state.Players[agentID]
	var names []string
	for _, p := range r.state.ActivePlayers() {
		names = append(names, p.ID)
	}
	req := agents.MessageRequest{
		AgentID:      agentID,
		Personality:  a.Personality,
		Topic:        r.state.Topic,
		History:      r.historyLocked(),
		VisibleNames: names,
	}
	r.mu.Unlock()

	text := r.provider.GenerateMessage(r.ctx, req)
	if text == "" {
		return
	}

	r.mu.Lock()
	if r.state.Phase != game.PhaseDiscussion {
		r.mu.Unlock()
		metrics.LateAgentOutputDropped.WithLabelValues(dropPreTyping).Inc()
		return
	}
	r.broadcastLocked(Event{Type: EventTyping, Payload: TypingPayload{PlayerID: agentID, State: TypingStart}})
	r.mu.Unlock()

	// Simulated typing. Humans take time to write; an instant reply after a
	// multi-second generation would read as a bot either way.
	select {
	case <-r.clk.After(r.cfg.TypingDelay):
	case <-r.ctx.Done():
		return
	}

	r.mu.Lock()
	if r.state.Phase != game.PhaseDiscussion {
		logging.Info(r.ctx, "agent message dropped, phase moved on",
			zap.String("room_code", r.Code), zap.String("agent", agentID),
			zap.String("phase", string(r.state.Phase)))
		metrics.LateAgentOutputDropped.WithLabelValues(dropPreCommit).Inc()
		r.broadcastLocked(Event{Type: EventTyping, Payload: TypingPayload{PlayerID: agentID, State: TypingStop}})
		r.mu.Unlock()
		return
	}

	now := r.clk.Now()
	r.state.Chat = append(r.state.Chat, game.ChatMessage{Sender: agentID, Text: text, Timestamp: now})
	r.state.LastMessageTime = now
	r.state.PendingAIMessages = removeID(r.state.PendingAIMessages, agentID)
	r.processing.Delete(agentID)
	r.broadcastLocked(Event{Type: EventTyping, Payload: TypingPayload{PlayerID: agentID, State: TypingStop}})
	r.broadcastLocked(Event{Type: EventMessage, Payload: MessagePayload{Sender: agentID, Text: text, Timestamp: now}})
	r.mu.Unlock()

	// The new message is itself a trigger, excluding its author so an agent
	// never replies back-to-back to itself.
	r.requestDecisionPass(agentID)
}

// agentVoteTask generates and commits one agent vote. An invalid or stale
// choice degrades to a random valid target rather than an abstention.
func (r *Room) agentVoteTask(agentID string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		r.state.PendingAIVotes = removeID(r.state.PendingAIVotes, agentID)
		r.mu.Unlock()
	}()

	r.mu.Lock()
	if r.state.Phase != game.PhaseVoting {
		r.mu.Unlock()
		metrics.LateAgentOutputDropped.WithLabelValues(dropPreGeneration).Inc()
		return
	}
	a := r.state.Players[agentID]
	var candidates []string
	for _, p := range r.state.ActivePlayers() {
		if p.ID != agentID {
			candidates = append(candidates, p.ID)
		}
	}
	req := agents.VoteRequest{
		AgentID:     agentID,
		Personality: a.Personality,
		History:     r.roundHistoryLocked(),
		Candidates:  candidates,
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return
	}

	choice := r.provider.GenerateVote(r.ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != game.PhaseVoting || !r.votingOpen {
		metrics.LateAgentOutputDropped.WithLabelValues(dropPreCommit).Inc()
		return
	}

	target := choice.Vote
	if reason := r.state.ValidateVote(agentID, target); reason != "" {
		var valid []string
		for _, c := range candidates {
			if r.state.ValidateVote(agentID, c) == "" {
				valid = append(valid, c)
			}
		}
		if len(valid) == 0 {
			return
		}
		logging.Warn(r.ctx, "agent vote invalid, substituting random target",
			zap.String("room_code", r.Code), zap.String("agent", agentID),
			zap.String("vote", target), zap.String("reason", reason))
		target = valid[r.rng.Intn(len(valid))]
	}

	r.commitVoteLocked(agentID, target)
}
