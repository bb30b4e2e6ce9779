package game

import "math/rand"

// TallyVotes counts votes per target.
func TallyVotes(votes map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}
	return counts
}

// PickSuspect selects the elimination target: highest count wins, ties are
// broken uniformly at random among the tied. Returns ok=false when no votes
// were cast at all.
func PickSuspect(counts map[string]int, rng *rand.Rand) (string, bool) {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	if max == 0 {
		return "", false
	}

	var tied []string
	for target, c := range counts {
		if c == max {
			tied = append(tied, target)
		}
	}
	// Map iteration order is already random, but make the draw explicit so
	// the distribution does not depend on runtime internals.
	return tied[rng.Intn(len(tied))], true
}

// ValidateVote checks a (voter, target) pair against the current window.
// Returns a reason string suitable for the error event, empty when valid.
func (s *State) ValidateVote(voterID, targetID string) string {
	voter, ok := s.Players[voterID]
	if !ok {
		return "unknown voter"
	}
	if voter.Eliminated {
		return "eliminated players cannot vote"
	}
	if _, voted := s.Votes[voterID]; voted {
		return "already voted"
	}
	if voterID == targetID {
		return "cannot vote for yourself"
	}
	target, ok := s.Players[targetID]
	if !ok {
		return "unknown target"
	}
	if target.Eliminated {
		return "target is eliminated"
	}
	return ""
}
