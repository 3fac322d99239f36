// Package mock provides an llm.Completer for running without model credentials.
package mock

import (
	"context"
	"sync"

	"clinical-speech-translator/internal/service/llm"
)

// Func computes a completion for one request.
type Func func(req llm.Request) (string, error)

// Completer answers with Func and records every request it receives.
type Completer struct {
	mu    sync.Mutex
	fn    Func
	calls []llm.Request
}

// New creates a mock completer. A nil fn echoes the embedded transcript.
func New(fn Func) *Completer {
	if fn == nil {
		fn = Echo
	}
	return &Completer{fn: fn}
}

// Echo returns the request transcript unchanged for every stage.
func Echo(req llm.Request) (string, error) {
	return req.Text, nil
}

// Complete implements llm.Completer.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.calls = append(c.calls, req)
	fn := c.fn
	c.mu.Unlock()
	return fn(req)
}

// Calls returns a copy of the recorded requests.
func (c *Completer) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request{}, c.calls...)
}
