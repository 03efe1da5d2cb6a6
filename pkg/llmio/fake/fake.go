// Package fake is a deterministic, in-memory llmio.LLMCaller used by
// workflow and router tests, mirroring pkg/toolprovider/fake's shape.
package fake

import (
	"context"
	"sync"

	"agentcore/pkg/llmio"
)

// result is one scripted Complete outcome: either a response or an error,
// never both meaningfully (err takes precedence when non-nil).
type result struct {
	resp llmio.CompletionResponse
	err  error
}

// Caller is a scriptable LLMCaller: each call consumes the next queued
// result, or falls back to Default if the queue is empty.
type Caller struct {
	mu       sync.Mutex
	queue    []result
	Default  llmio.CompletionResponse
	Requests []llmio.CompletionRequest
}

// New builds a Caller that returns Default for every call until results
// are queued with Enqueue/EnqueueError.
func New(def llmio.CompletionResponse) *Caller {
	return &Caller{Default: def}
}

// Enqueue schedules resp to be returned by the next Complete call.
func (c *Caller) Enqueue(resp llmio.CompletionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, result{resp: resp})
}

// EnqueueError schedules err to be returned by the next Complete call,
// simulating an LLM-seam failure (timeout, provider error, etc.).
func (c *Caller) EnqueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, result{err: err})
}

func (c *Caller) Complete(ctx context.Context, req llmio.CompletionRequest) (llmio.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)

	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		return next.resp, next.err
	}
	return c.Default, nil
}

var _ llmio.LLMCaller = (*Caller)(nil)
