package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/logx"
)

type recordingTransport struct {
	mu        sync.Mutex
	delivered []string
	failNext  bool
}

func (r *recordingTransport) Deliver(ctx context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("transport failure")
	}
	r.delivered = append(r.delivered, text)
	return nil
}

func TestNotifyDeliversAllChunksInOrder(t *testing.T) {
	transport := &recordingTransport{}
	ch := New(transport, 10, time.Millisecond, logx.NewLogger("test"))

	ch.Notify(context.Background(), "user-1", "aaaaaaaaaa bbbbbbbbbb")

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.NotEmpty(t, transport.delivered)
	assert.Equal(t, "aaaaaaaaaa bbbbbbbbbb", joinAll(transport.delivered))
}

func TestNotifySwallowsTransportErrors(t *testing.T) {
	transport := &recordingTransport{failNext: true}
	ch := New(transport, 4096, time.Millisecond, logx.NewLogger("test"))

	assert.NotPanics(t, func() {
		ch.Notify(context.Background(), "user-1", "short message")
	})
}

func TestNotifyStopsEarlyOnContextCancellation(t *testing.T) {
	transport := &recordingTransport{}
	ch := New(transport, 5, 200*time.Millisecond, logx.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	ch.Notify(ctx, "user-1", "one two three four five six seven")

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Less(t, len(transport.delivered), 7, "cancellation should stop delivery of remaining chunks")
}

func joinAll(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}
