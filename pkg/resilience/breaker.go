package resilience

import (
	"context"
	"sync"
	"time"

	"agentcore/pkg/orcherrors"
)

// BreakerState is one of closed/open/half_open (spec §4.8), named with the
// teacher's explicit-transition-map FSM idiom
// (pkg/architect/architect_fsm.go's `var xTransitions = map[State][]State{...}`).
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

var breakerTransitions = map[BreakerState][]BreakerState{
	StateClosed:   {StateOpen},
	StateOpen:     {StateHalfOpen},
	StateHalfOpen: {StateClosed, StateOpen},
}

// canTransition reports whether from -> to is a legal breaker transition.
func canTransition(from, to BreakerState) bool {
	for _, s := range breakerTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BreakerConfig parameterizes one breaker instance.
type BreakerConfig struct {
	FailThreshold  int
	BreakerTimeout time.Duration
}

// Breaker is a per-external-service circuit breaker. State is process-local,
// guarded by a mutex; it is never shared across process instances (spec §4.8).
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	halfOpenBusy bool
}

// NewBreaker builds a closed Breaker with the given policy.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed}
}

// State returns the breaker's current state under lock.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves the breaker from its current state to to. A transition
// that breakerTransitions does not allow is ignored: the state is left as it
// was.
func (b *Breaker) transition(to BreakerState) {
	if !canTransition(b.state, to) {
		return
	}
	b.state = to
	if to == StateOpen {
		b.openedAt = time.Now()
	}
}

// Allow reports whether a call may proceed. It transitions open -> half_open
// once BreakerTimeout has elapsed, admitting exactly one trial call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.BreakerTimeout {
			b.transition(StateHalfOpen)
			b.halfOpenBusy = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.halfOpenBusy = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure increments the failure count, opening the breaker once
// FailThreshold is reached (or immediately, if the failure occurred during
// the half-open trial call).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenBusy = false

	if b.state == StateHalfOpen {
		b.transition(StateOpen)
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailThreshold {
		b.transition(StateOpen)
	}
}

// Call executes fn if the breaker allows it, recording the outcome.
// Returns orcherrors.ErrCircuitOpen without calling fn when the breaker is open.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return orcherrors.ErrCircuitOpen
	}
	err := fn(ctx)
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
