// Package agents implements the LLM-facing side of the game: prompt
// construction, provider clients, response parsing, and the deterministic
// fallbacks that keep a match moving when a provider misbehaves.
package agents

import (
	"context"
	"sync"
)

// Completer is a single-call text completion against one provider. All
// higher-level behavior (prompting, parsing, fallbacks, concurrency caps)
// lives in Client; variants only move bytes.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CannedCompleter returns scripted responses in order, cycling when
// exhausted. It backs the "fallback" provider and most tests.
type CannedCompleter struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	next      int

	// Delay hook lets tests simulate a slow provider.
	OnComplete func(ctx context.Context)
}

func (c *CannedCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	if c.OnComplete != nil {
		c.OnComplete(ctx)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Responses) == 0 {
		return `{"should_respond": false, "reason": "nothing to add"}`, nil
	}
	resp := c.Responses[c.next%len(c.Responses)]
	c.next++
	return resp, nil
}
