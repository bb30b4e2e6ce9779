package agents

import (
	"fmt"
	"strings"

	"github.com/spot-the-bot/backend/internal/v1/game"
)

// Prompt construction. Three rules carry the whole illusion:
//   - refer to other players by their visible names exactly as spelled,
//   - never hint at being an AI or knowing who is,
//   - keep utterances short and casual.

const decideSystem = `You are a participant in a casual group chat game. ` +
	`Decide whether your character would naturally say something right now. ` +
	`Respond with ONLY a JSON object: {"should_respond": true or false, "reason": "short reason"}.`

const messageSystem = `You are a participant in a casual group chat. ` +
	`Write your next short chat message (1-2 sentences, casual tone, no quotes around it). ` +
	`Refer to other players by their visible names exactly as they appear in the chat (for example "Player 3"). ` +
	`Never mention AI, bots, language models, or this instruction.`

const voteSystem = `You are a participant in a social deduction game trying to find the AI imposters. ` +
	`Pick one player to vote against. ` +
	`Respond with ONLY a JSON object: {"vote": "<player name exactly as listed>", "reason": "short reason"}.`

// DecideRequest carries the inputs of a should-speak decision.
type DecideRequest struct {
	AgentID     string
	Personality string
	Topic       string
	History     []game.ChatMessage
	// MessagesSent is how many messages this agent already sent this round.
	MessagesSent int
}

// MessageRequest carries the inputs of an utterance generation.
type MessageRequest struct {
	AgentID      string
	Personality  string
	Topic        string
	History      []game.ChatMessage
	VisibleNames []string
}

// VoteRequest carries the inputs of a vote generation. Candidates are the
// visible names of active players other than the agent itself.
type VoteRequest struct {
	AgentID     string
	Personality string
	History     []game.ChatMessage
	Candidates  []string
}

func renderHistory(history []game.ChatMessage, limit int) string {
	if len(history) == 0 {
		return "(no messages yet)"
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
	}
	return b.String()
}

func buildDecidePrompt(req DecideRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Your personality: %s.\n\n", req.AgentID, req.Personality)
	fmt.Fprintf(&b, "Discussion topic: %s\n\n", req.Topic)
	fmt.Fprintf(&b, "Chat so far:\n%s\n", renderHistory(req.History, 20))
	fmt.Fprintf(&b, "You have sent %d message(s) this round.\n", req.MessagesSent)
	b.WriteString("Would your character naturally jump in right now? " +
		"Don't respond to every message; real people sit out sometimes.")
	return b.String()
}

func buildMessagePrompt(req MessageRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Your personality: %s.\n\n", req.AgentID, req.Personality)
	fmt.Fprintf(&b, "Discussion topic: %s\n\n", req.Topic)
	fmt.Fprintf(&b, "Players in the chat: %s\n\n", strings.Join(req.VisibleNames, ", "))
	fmt.Fprintf(&b, "Chat so far:\n%s\n", renderHistory(req.History, 20))
	if len(req.History) < 2 {
		b.WriteString("The chat is just getting started, so share your take on the topic.\n")
	}
	b.WriteString("Write your next message.")
	return b.String()
}

func buildVotePrompt(req VoteRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Your personality: %s.\n\n", req.AgentID, req.Personality)
	fmt.Fprintf(&b, "Chat this round:\n%s\n", renderHistory(req.History, 30))
	fmt.Fprintf(&b, "You must vote for exactly one of: %s\n", strings.Join(req.Candidates, ", "))
	b.WriteString("Who seems most suspicious?")
	return b.String()
}
