// Package session implements the Session Store (spec §4.2): per-user
// conversation history with a TTL, refreshed on every read or write.
// Session data is explicitly non-durable (spec.md §3 lifecycle), so unlike
// pkg/persistence this store lives entirely in memory.
package session

import (
	"sync"
	"time"
)

// Role distinguishes the speaker of a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's bounded history.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Session is the per-user conversation state (spec.md §3 User Session).
type Session struct {
	UserID     string
	Platform   string
	History    []Turn
	CreatedAt  time.Time
	LastActive time.Time
}

// Store is the in-memory, TTL-expiring Session Store.
type Store struct {
	ttl       time.Duration
	nHistory  int
	mu        sync.Mutex
	sessions  map[string]*Session
	stopOnce  sync.Once
	janitorCh chan struct{}
}

// New creates a Store and starts its background janitor, which sweeps
// expired sessions every sweepInterval. Mirrors the teacher's timer-driven
// daily reset (pkg/limiter.Limiter.scheduleDailyReset) but on a short,
// repeating interval suited to session TTLs measured in minutes.
func New(ttl time.Duration, nHistory int, sweepInterval time.Duration) *Store {
	s := &Store{
		ttl:       ttl,
		nHistory:  nHistory,
		sessions:  make(map[string]*Session),
		janitorCh: make(chan struct{}),
	}
	go s.runJanitor(sweepInterval)
	return s
}

func (s *Store) runJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.janitorCh:
			return
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// Close stops the janitor goroutine. Safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.janitorCh) })
}

// Get returns the session for userID, creating it if absent, and refreshes
// its TTL regardless of which branch was taken.
func (s *Store) Get(userID, platform string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		now := time.Now()
		sess = &Session{
			UserID:     userID,
			Platform:   platform,
			CreatedAt:  now,
			LastActive: now,
		}
		s.sessions[userID] = sess
	} else {
		sess.LastActive = time.Now()
	}
	return sess
}

// Append adds a turn to userID's history, dropping the oldest entry if the
// bound nHistory would otherwise be exceeded, and refreshes the TTL.
func (s *Store) Append(userID, platform string, role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	now := time.Now()
	if !ok {
		sess = &Session{UserID: userID, Platform: platform, CreatedAt: now}
		s.sessions[userID] = sess
	}
	sess.LastActive = now
	sess.History = append(sess.History, Turn{Role: role, Text: text, Timestamp: now})
	if excess := len(sess.History) - s.nHistory; excess > 0 {
		sess.History = sess.History[excess:]
	}
}

// Clear empties userID's history without removing the session or affecting
// orchestrator state (spec §4.1 reset_session).
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.History = nil
		sess.LastActive = time.Now()
	}
}

// ActiveCount returns the number of sessions currently tracked.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
