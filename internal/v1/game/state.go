package game

import (
	"math/rand"
	"sort"
	"time"
)

// State is the authoritative in-memory record of one match. It is owned by
// exactly one room and must only be touched under that room's lock.
type State struct {
	Round int
	Topic string
	Phase Phase

	Players map[string]*Player

	Chat  []ChatMessage
	Votes map[string]string // voter id -> target id

	PendingAIMessages []string
	PendingAIVotes    []string

	RoundStartTime  time.Time
	LastMessageTime time.Time

	Winner          Winner
	SelectedSuspect string
	SuspectRole     Role
}

// DrawNumbers returns 1..total in uniformly random order.
func DrawNumbers(total int, rng *rand.Rand) []int {
	nums := make([]int, total)
	for i := range nums {
		nums[i] = i + 1
	}
	rng.Shuffle(len(nums), func(i, j int) {
		nums[i], nums[j] = nums[j], nums[i]
	})
	return nums
}

// NewState builds the initial state with agents pre-instantiated under their
// drawn numbers. Agent ids never change after construction.
func NewState(agentNumbers []int, rng *rand.Rand) *State {
	s := &State{
		Phase:   PhaseLobby,
		Players: make(map[string]*Player),
		Votes:   make(map[string]string),
	}
	for _, n := range agentNumbers {
		id := PlayerName(n)
		s.Players[id] = &Player{
			ID:          id,
			Number:      n,
			Role:        RoleAI,
			Personality: RandomPersonality(rng),
		}
	}
	return s
}

// AddHuman registers a human player under the given slot number.
func (s *State) AddHuman(number int) *Player {
	id := PlayerName(number)
	p := &Player{ID: id, Number: number, Role: RoleHuman}
	s.Players[id] = p
	return p
}

// RemovePlayer deletes a player outright. Used only while the room is
// waiting; once a match started players are eliminated, not removed.
func (s *State) RemovePlayer(id string) {
	delete(s.Players, id)
}

// PlayersByNumber returns all players sorted by slot number.
func (s *State) PlayersByNumber() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ActivePlayers returns non-eliminated players sorted by slot number.
func (s *State) ActivePlayers() []*Player {
	var out []*Player
	for _, p := range s.PlayersByNumber() {
		if !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

// ActiveAgents returns non-eliminated agents sorted by slot number.
func (s *State) ActiveAgents() []*Player {
	var out []*Player
	for _, p := range s.ActivePlayers() {
		if p.Role == RoleAI {
			out = append(out, p)
		}
	}
	return out
}

// Humans returns all human players sorted by slot number.
func (s *State) Humans() []*Player {
	var out []*Player
	for _, p := range s.PlayersByNumber() {
		if p.Role == RoleHuman {
			out = append(out, p)
		}
	}
	return out
}

// LastSender returns the sender of the most recent chat entry, or "".
func (s *State) LastSender() string {
	if len(s.Chat) == 0 {
		return ""
	}
	return s.Chat[len(s.Chat)-1].Sender
}

// LastMessageOf returns the timestamp of the player's most recent message
// and whether one exists.
func (s *State) LastMessageOf(playerID string) (time.Time, bool) {
	for i := len(s.Chat) - 1; i >= 0; i-- {
		if s.Chat[i].Sender == playerID {
			return s.Chat[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

// BeginRound resets per-round bookkeeping and enters discussion.
func (s *State) BeginRound(topic string, now time.Time) {
	s.Round++
	s.Topic = topic
	s.Phase = PhaseDiscussion
	s.Votes = make(map[string]string)
	s.PendingAIMessages = nil
	s.PendingAIVotes = nil
	s.RoundStartTime = now
	s.LastMessageTime = now
	for _, p := range s.Players {
		p.Voted = false
	}
}

// Outcome evaluates the win predicate after an elimination. Any eliminated
// human hands the game to the agents; surviving roundsToWin rounds hands it
// to the humans.
func (s *State) Outcome(roundsToWin int) Winner {
	for _, p := range s.Players {
		if p.Role == RoleHuman && p.Eliminated {
			return WinnerAI
		}
	}
	if s.Round >= roundsToWin {
		return WinnerHuman
	}
	return WinnerNone
}
