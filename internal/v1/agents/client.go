package agents

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/metrics"
)

// Decision is the structured output of a should-speak call.
type Decision struct {
	ShouldRespond bool   `json:"should_respond"`
	Reason        string `json:"reason"`
}

// VoteChoice is the structured output of a vote call.
type VoteChoice struct {
	Vote   string `json:"vote"`
	Reason string `json:"reason"`
}

// Provider is the narrow contract the orchestrator depends on. LLM failures
// never escape it; every method degrades to a deterministic fallback so a
// flaky provider cannot stall a match.
type Provider interface {
	Decide(ctx context.Context, req DecideRequest) Decision
	GenerateMessage(ctx context.Context, req MessageRequest) string
	GenerateVote(ctx context.Context, req VoteRequest) VoteChoice
}

// fallbackSpeakProbability is used when a decision call fails outright.
const fallbackSpeakProbability = 0.3

// Bland agreement phrases substituted when message generation fails. None
// of them may hint at the sender being an agent.
var fallbackPhrases = []string{
	"Yeah, I see what you mean.",
	"Haha, fair point.",
	"Honestly, same here.",
	"I was just thinking that.",
	"Good question, I'm torn on it.",
}

// Options bounds the shared client.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
}

// Client implements Provider on top of a Completer. It owns the concurrency
// semaphore, the per-call deadline, the circuit breaker, and the fallbacks.
// Safe for concurrent use across rooms.
type Client struct {
	completer Completer
	cb        *gobreaker.CircuitBreaker
	sem       chan struct{}
	timeout   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient wraps a completer with gating and fallbacks.
func NewClient(completer Completer, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}

	st := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &Client{
		completer: completer,
		cb:        gobreaker.NewCircuitBreaker(st),
		sem:       make(chan struct{}, opts.MaxConcurrent),
		timeout:   opts.Timeout,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// complete runs one gated provider call: semaphore, deadline, breaker.
func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-c.sem }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.cb.Execute(func() (any, error) {
		return c.completer.Complete(ctx, system, user)
	})
	metrics.LLMRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) chance(p float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < p
}

func (c *Client) pick(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}

// Decide asks whether the agent should speak now. On any failure it falls
// back to speaking with a fixed probability.
func (c *Client) Decide(ctx context.Context, req DecideRequest) Decision {
	raw, err := c.complete(ctx, "decide", decideSystem, buildDecidePrompt(req))
	if err == nil {
		var d Decision
		if perr := unmarshalLoose(raw, &d); perr == nil {
			return d
		}
		err = errNoJSONObject
	}

	metrics.LLMFallbacks.WithLabelValues("decide").Inc()
	logging.Warn(ctx, "decision call failed, using probabilistic fallback",
		zap.String("agent", req.AgentID), zap.Error(err))
	return Decision{ShouldRespond: c.chance(fallbackSpeakProbability), Reason: "fallback"}
}

// GenerateMessage produces the agent's next utterance. On failure it
// substitutes a bland agreement phrase.
func (c *Client) GenerateMessage(ctx context.Context, req MessageRequest) string {
	raw, err := c.complete(ctx, "message", messageSystem, buildMessagePrompt(req))
	if err == nil {
		if text := cleanUtterance(raw); text != "" {
			return text
		}
	}

	metrics.LLMFallbacks.WithLabelValues("message").Inc()
	logging.Warn(ctx, "message generation failed, using fallback phrase",
		zap.String("agent", req.AgentID), zap.Error(err))
	return fallbackPhrases[c.pick(len(fallbackPhrases))]
}

// GenerateVote picks a target among the candidates. Malformed output or an
// out-of-set vote degrades to a uniform random choice.
func (c *Client) GenerateVote(ctx context.Context, req VoteRequest) VoteChoice {
	if len(req.Candidates) == 0 {
		return VoteChoice{}
	}

	raw, err := c.complete(ctx, "vote", voteSystem, buildVotePrompt(req))
	if err == nil {
		var v VoteChoice
		if perr := unmarshalLoose(raw, &v); perr == nil {
			for _, cand := range req.Candidates {
				if v.Vote == cand {
					return v
				}
			}
		}
	}

	metrics.LLMFallbacks.WithLabelValues("vote").Inc()
	logging.Warn(ctx, "vote generation failed, using random fallback",
		zap.String("agent", req.AgentID), zap.Error(err))
	return VoteChoice{Vote: req.Candidates[c.pick(len(req.Candidates))], Reason: "fallback"}
}
