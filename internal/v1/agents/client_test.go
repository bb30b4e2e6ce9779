package agents

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(c Completer) *Client {
	return NewClient(c, Options{Timeout: time.Second, MaxConcurrent: 4})
}

func TestDecide_ParsesProviderOutput(t *testing.T) {
	client := testClient(&CannedCompleter{Responses: []string{
		`{"should_respond": true, "reason": "has a take"}`,
	}})

	d := client.Decide(context.Background(), DecideRequest{AgentID: "Player 2"})

	assert.True(t, d.ShouldRespond)
	assert.Equal(t, "has a take", d.Reason)
}

func TestDecide_FallbackProbabilityInRange(t *testing.T) {
	client := testClient(&CannedCompleter{Err: errors.New("provider down")})

	yes := 0
	for i := 0; i < 1000; i++ {
		if client.Decide(context.Background(), DecideRequest{AgentID: "Player 2"}).ShouldRespond {
			yes++
		}
	}

	// p=0.3 fallback; 1000 trials land well inside [200, 400].
	assert.Greater(t, yes, 200)
	assert.Less(t, yes, 400)
}

func TestGenerateMessage_FallbackIsBland(t *testing.T) {
	client := testClient(&CannedCompleter{Err: errors.New("provider down")})

	text := client.GenerateMessage(context.Background(), MessageRequest{AgentID: "Player 2"})

	assert.Contains(t, fallbackPhrases, text)
}

func TestGenerateMessage_StripsQuotes(t *testing.T) {
	client := testClient(&CannedCompleter{Responses: []string{`"honestly pineapple pizza rules"`}})

	text := client.GenerateMessage(context.Background(), MessageRequest{AgentID: "Player 2"})

	assert.Equal(t, "honestly pineapple pizza rules", text)
}

func TestGenerateVote_RejectsOutOfSetChoice(t *testing.T) {
	client := testClient(&CannedCompleter{Responses: []string{
		`{"vote": "Player 99", "reason": "hunch"}`,
	}})
	candidates := []string{"Player 1", "Player 3"}

	v := client.GenerateVote(context.Background(), VoteRequest{AgentID: "Player 2", Candidates: candidates})

	assert.Contains(t, candidates, v.Vote)
	assert.Equal(t, "fallback", v.Reason)
}

func TestGenerateVote_AcceptsValidChoice(t *testing.T) {
	client := testClient(&CannedCompleter{Responses: []string{
		`{"vote": "Player 3", "reason": "too quiet"}`,
	}})

	v := client.GenerateVote(context.Background(), VoteRequest{
		AgentID:    "Player 2",
		Candidates: []string{"Player 1", "Player 3"},
	})

	assert.Equal(t, "Player 3", v.Vote)
	assert.Equal(t, "too quiet", v.Reason)
}

func TestGenerateVote_NoCandidates(t *testing.T) {
	client := testClient(&CannedCompleter{})

	v := client.GenerateVote(context.Background(), VoteRequest{AgentID: "Player 2"})

	assert.Empty(t, v.Vote)
}

func TestClient_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	release := make(chan struct{})
	completer := &CannedCompleter{
		Responses: []string{`{"should_respond": false, "reason": "quiet"}`},
		OnComplete: func(ctx context.Context) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt64(&inFlight, -1)
		},
	}
	client := NewClient(completer, Options{Timeout: time.Second, MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Decide(context.Background(), DecideRequest{AgentID: "Player 2"})
		}()
	}

	// Let the first wave hit the semaphore before releasing anyone.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestClient_ContextCancelFallsBack(t *testing.T) {
	completer := &CannedCompleter{
		Responses: []string{`{"should_respond": true, "reason": "x"}`},
		OnComplete: func(ctx context.Context) {
			<-ctx.Done()
		},
	}
	client := NewClient(completer, Options{Timeout: 50 * time.Millisecond, MaxConcurrent: 2})

	start := time.Now()
	d := client.Decide(context.Background(), DecideRequest{AgentID: "Player 2"})

	require.Less(t, time.Since(start), time.Second)
	// Timeout forces the probabilistic fallback.
	assert.Equal(t, "fallback", d.Reason)
}
