package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/spot-the-bot/backend/internal/v1/agents"
)

// recordedEvent is one decoded frame a mock connection received.
type recordedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// mockConn records every frame in order. Implements Connection.
type mockConn struct {
	playerID string

	mu     sync.Mutex
	events []recordedEvent
	closed bool
}

func newMockConn(playerID string) *mockConn {
	return &mockConn{playerID: playerID}
}

func (c *mockConn) PlayerID() string { return c.playerID }

func (c *mockConn) Send(data []byte) {
	var ev recordedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *mockConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func (c *mockConn) countOf(eventType string) int {
	n := 0
	for _, typ := range c.eventTypes() {
		if typ == eventType {
			n++
		}
	}
	return n
}

func (c *mockConn) hasEvent(eventType string) bool {
	return c.countOf(eventType) > 0
}

// payloadsOf decodes every payload of the given event type into T.
func payloadsOf[T any](t *testing.T, c *mockConn, eventType string) []T {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []T
	for _, ev := range c.events {
		if ev.Type != eventType {
			continue
		}
		var v T
		require.NoError(t, json.Unmarshal(ev.Payload, &v))
		out = append(out, v)
	}
	return out
}

// fakeProvider is a scripted agents.Provider. Unset hooks fall back to
// quiet, deterministic behavior.
type fakeProvider struct {
	mu          sync.Mutex
	decideFunc  func(req agents.DecideRequest) bool
	messageFunc func(req agents.MessageRequest) string
	voteFunc    func(req agents.VoteRequest) string

	decideAsked []string
}

func (f *fakeProvider) Decide(_ context.Context, req agents.DecideRequest) agents.Decision {
	f.mu.Lock()
	f.decideAsked = append(f.decideAsked, req.AgentID)
	fn := f.decideFunc
	f.mu.Unlock()

	if fn == nil {
		return agents.Decision{ShouldRespond: false, Reason: "scripted quiet"}
	}
	return agents.Decision{ShouldRespond: fn(req), Reason: "scripted"}
}

func (f *fakeProvider) GenerateMessage(_ context.Context, req agents.MessageRequest) string {
	f.mu.Lock()
	fn := f.messageFunc
	f.mu.Unlock()

	if fn == nil {
		return "sounds good to me"
	}
	return fn(req)
}

func (f *fakeProvider) GenerateVote(_ context.Context, req agents.VoteRequest) agents.VoteChoice {
	f.mu.Lock()
	fn := f.voteFunc
	f.mu.Unlock()

	if fn == nil {
		return agents.VoteChoice{Vote: req.Candidates[0], Reason: "scripted"}
	}
	return agents.VoteChoice{Vote: fn(req), Reason: "scripted"}
}

func (f *fakeProvider) askedAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.decideAsked...)
}

// testEnv bundles a registry on a fake clock with a scripted provider.
type testEnv struct {
	reg      *Registry
	clk      *testclock.FakeClock
	provider *fakeProvider
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		clk:      testclock.NewFakeClock(time.Now()),
		provider: &fakeProvider{},
	}
	env.reg = NewRegistry(cfg, env.clk, env.provider, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.reg.Shutdown(ctx)
	})
	return env
}

// longGameConfig keeps phase timers far away so real-time test scheduling
// cannot expire them by accident.
func longGameConfig() Config {
	return Config{
		DiscussionTime:    time.Hour,
		VotingTime:        time.Hour,
		ProactiveInterval: 30 * time.Minute,
		TypingDelay:       2 * time.Second,
	}
}

// joinAll fills the room's human seats, attaching a mock connection per
// player, and returns the connections keyed by join order.
func joinAll(t *testing.T, r *Room) []*mockConn {
	t.Helper()
	conns := make([]*mockConn, 0, r.MaxHumans)
	for i := 0; i < r.MaxHumans; i++ {
		res, err := r.Join()
		require.NoError(t, err)
		conn := newMockConn(res.PlayerID)
		r.AddConnection(conn)
		conns = append(conns, conn)
	}
	return conns
}

// waitForWaiters blocks until the orchestrator armed a fake-clock timer.
func waitForWaiters(t *testing.T, clk *testclock.FakeClock) {
	t.Helper()
	require.Eventually(t, clk.HasWaiters, 2*time.Second, 5*time.Millisecond,
		"no timer armed on the fake clock")
}

// eventually wraps the common polling parameters.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}
