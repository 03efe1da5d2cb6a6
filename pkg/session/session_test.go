package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(50*time.Millisecond, 3, 5*time.Millisecond)
}

func TestGetCreatesSessionOnFirstAccess(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	sess := s.Get("user-1", "chat")
	require.NotNil(t, sess)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "chat", sess.Platform)
	assert.Equal(t, 1, s.ActiveCount())
}

func TestAppendBoundsHistoryToNHistory(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Append("user-1", "chat", RoleUser, "message")
	}
	sess := s.Get("user-1", "chat")
	assert.Len(t, sess.History, 3, "history must be bounded to nHistory")
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Append("user-1", "chat", RoleUser, "one")
	s.Append("user-1", "chat", RoleAssistant, "two")
	s.Append("user-1", "chat", RoleUser, "three")

	sess := s.Get("user-1", "chat")
	require.Len(t, sess.History, 3)
	assert.Equal(t, "one", sess.History[0].Text)
	assert.Equal(t, "two", sess.History[1].Text)
	assert.Equal(t, "three", sess.History[2].Text)
}

func TestClearEmptiesHistoryButKeepsSession(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Append("user-1", "chat", RoleUser, "hi")
	s.Clear("user-1")

	sess := s.Get("user-1", "chat")
	assert.Empty(t, sess.History)
	assert.Equal(t, 1, s.ActiveCount())
}

func TestJanitorExpiresStaleSessions(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Get("user-1", "chat")
	require.Equal(t, 1, s.ActiveCount())

	assert.Eventually(t, func() bool {
		return s.ActiveCount() == 0
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestGetRefreshesTTLOnRead(t *testing.T) {
	s := New(80*time.Millisecond, 3, 10*time.Millisecond)
	defer s.Close()

	s.Get("user-1", "chat")
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Get("user-1", "chat")
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, s.ActiveCount(), "repeated reads should keep refreshing TTL")
}
