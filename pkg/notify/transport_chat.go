package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ChatTransport delivers chunks over a per-user websocket connection,
// grounded on the teacher's webui push-to-browser pattern generalized from
// pushing log lines to pushing chunked notification text.
type ChatTransport struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewChatTransport builds an empty ChatTransport; connections are attached
// as clients connect via Attach.
func NewChatTransport() *ChatTransport {
	return &ChatTransport{conns: make(map[string]*websocket.Conn)}
}

// Attach registers conn as the active websocket for userID, replacing any
// previous connection for that user.
func (t *ChatTransport) Attach(userID string, conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.conns[userID]; ok {
		_ = old.Close()
	}
	t.conns[userID] = conn
}

// Detach removes userID's connection, if any.
func (t *ChatTransport) Detach(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[userID]; ok {
		_ = conn.Close()
		delete(t.conns, userID)
	}
}

// Deliver writes text as a single websocket text message to userID's
// connection. Returns an error if no connection is attached, which the
// caller (Channel.Notify) logs and swallows rather than propagating.
func (t *ChatTransport) Deliver(ctx context.Context, userID, text string) error {
	t.mu.Lock()
	conn, ok := t.conns[userID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify: no chat connection attached for %s", userID)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("notify: websocket write to %s: %w", userID, err)
	}
	return nil
}
