package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	s := NewState([]int{2, 4}, rng)
	s.AddHuman(1)
	s.AddHuman(3)
	return s
}

func TestNewState_AgentsPreInstantiated(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := NewState([]int{6, 2}, rng)

	require.Len(t, s.Players, 2)
	for _, id := range []string{"Player 6", "Player 2"} {
		p, ok := s.Players[id]
		require.True(t, ok, id)
		assert.Equal(t, RoleAI, p.Role)
		assert.NotEmpty(t, p.Personality)
	}
	assert.Equal(t, PhaseLobby, s.Phase)
}

func TestOrderingHelpers(t *testing.T) {
	s := newTestState(t)
	s.Players["Player 4"].Eliminated = true

	var ids []string
	for _, p := range s.PlayersByNumber() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Player 1", "Player 2", "Player 3", "Player 4"}, ids)

	ids = nil
	for _, p := range s.ActivePlayers() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Player 1", "Player 2", "Player 3"}, ids)

	ids = nil
	for _, p := range s.ActiveAgents() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Player 2"}, ids)

	ids = nil
	for _, p := range s.Humans() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Player 1", "Player 3"}, ids)
}

func TestBeginRound_ResetsRoundState(t *testing.T) {
	s := newTestState(t)
	now := time.Now()

	s.BeginRound("topic one", now)
	s.Votes["Player 1"] = "Player 2"
	s.Players["Player 1"].Voted = true
	s.PendingAIMessages = []string{"Player 2"}
	s.Chat = append(s.Chat, ChatMessage{Sender: "Player 1", Text: "hi", Timestamp: now})

	s.BeginRound("topic two", now.Add(time.Minute))

	assert.Equal(t, 2, s.Round)
	assert.Equal(t, "topic two", s.Topic)
	assert.Equal(t, PhaseDiscussion, s.Phase)
	assert.Empty(t, s.Votes)
	assert.Empty(t, s.PendingAIMessages)
	assert.False(t, s.Players["Player 1"].Voted)
	// Chat survives across rounds; agents reference earlier exchanges.
	assert.Len(t, s.Chat, 1)
}

func TestLastMessageHelpers(t *testing.T) {
	s := newTestState(t)
	base := time.Now()

	assert.Empty(t, s.LastSender())
	_, ok := s.LastMessageOf("Player 1")
	assert.False(t, ok)

	s.Chat = append(s.Chat,
		ChatMessage{Sender: "Player 1", Text: "a", Timestamp: base},
		ChatMessage{Sender: "Player 2", Text: "b", Timestamp: base.Add(time.Second)},
		ChatMessage{Sender: "Player 1", Text: "c", Timestamp: base.Add(2 * time.Second)},
	)

	assert.Equal(t, "Player 1", s.LastSender())
	ts, ok := s.LastMessageOf("Player 1")
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Second), ts)
}

func TestOutcome(t *testing.T) {
	t.Run("eliminated human hands win to agents", func(t *testing.T) {
		s := newTestState(t)
		s.Round = 1
		s.Players["Player 3"].Eliminated = true
		assert.Equal(t, WinnerAI, s.Outcome(3))
	})

	t.Run("surviving the final round hands win to humans", func(t *testing.T) {
		s := newTestState(t)
		s.Round = 3
		s.Players["Player 2"].Eliminated = true
		assert.Equal(t, WinnerHuman, s.Outcome(3))
	})

	t.Run("otherwise the game continues", func(t *testing.T) {
		s := newTestState(t)
		s.Round = 2
		s.Players["Player 2"].Eliminated = true
		assert.Equal(t, WinnerNone, s.Outcome(3))
	})
}
