package notify

import (
	"context"
	"time"

	"agentcore/pkg/logx"
)

// Transport delivers one already-chunked piece of text to user_id. Failures
// are the transport's own to retry or swallow; Channel never raises them to
// the workflow (spec §4.9: "failures are logged, never raised").
type Transport interface {
	Deliver(ctx context.Context, userID, text string) error
}

// Channel is the user-facing Notification Channel. It abstracts over
// transports so the workflow engine never knows whether output lands in
// chat or a VCS comment thread.
type Channel struct {
	transport   Transport
	maxChars    int
	chunkDelay  time.Duration
	log         *logx.Logger
}

// New builds a Channel backed by transport, splitting messages over
// maxChars and pacing consecutive chunks by chunkDelay (spec §6.7
// MAX_MSG_CHARS, CHUNK_DELAY).
func New(transport Transport, maxChars int, chunkDelay time.Duration, log *logx.Logger) *Channel {
	return &Channel{transport: transport, maxChars: maxChars, chunkDelay: chunkDelay, log: log}
}

// Notify delivers text to userID, fire-and-forget: any transport error is
// logged and swallowed, never returned to the caller.
func (c *Channel) Notify(ctx context.Context, userID, text string) {
	chunks := Split(text, c.maxChars)
	for i, chunk := range chunks {
		if err := c.transport.Deliver(ctx, userID, chunk); err != nil {
			c.log.Warn("notify: deliver to %s failed (chunk %d/%d): %v", userID, i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.chunkDelay):
			}
		}
	}
}
