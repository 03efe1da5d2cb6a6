package registry

import (
	"sync"
	"time"
)

// UsageStatus is the threshold state returned from RecordUsage (spec §4.5).
type UsageStatus string

const (
	UsageOK       UsageStatus = "OK"
	UsageWarning  UsageStatus = "WARNING"
	UsageCritical UsageStatus = "CRITICAL"
)

// Operation is one append-only token-usage record (spec.md §3 Token Tracker).
type Operation struct {
	OpName    string    `json:"op_name"`
	Input     int       `json:"input"`
	Output    int       `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenTracker accumulates per-instance token usage monotonically and
// classifies it against the warning/critical fractions.
type TokenTracker struct {
	mu               sync.Mutex
	contextLimit     int
	warnFraction     float64
	critFraction     float64
	cumulativeInput  int
	cumulativeOutput int
	cumulativeCached int
	operations       []Operation
	crossedWarning   bool
	crossedCritical  bool
}

// NewTokenTracker builds a tracker for the given context window and
// threshold fractions (spec §6.7 CONTEXT_LIMIT, WARN_FRACTION, CRIT_FRACTION).
func NewTokenTracker(contextLimit int, warnFraction, critFraction float64) *TokenTracker {
	return &TokenTracker{
		contextLimit: contextLimit,
		warnFraction: warnFraction,
		critFraction: critFraction,
	}
}

// Record adds an operation's usage and returns the resulting status,
// along with whether this call is the one that crossed into WARNING or
// CRITICAL for the first time (crossed=true only on the transition).
func (t *TokenTracker) Record(opName string, input, output, cached int) (status UsageStatus, crossed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cumulativeInput += input
	t.cumulativeOutput += output
	t.cumulativeCached += cached
	t.operations = append(t.operations, Operation{OpName: opName, Input: input, Output: output, Timestamp: time.Now()})

	fraction := t.usageFractionLocked()
	switch {
	case fraction >= t.critFraction:
		crossed = !t.crossedCritical
		t.crossedCritical = true
		t.crossedWarning = true
		return UsageCritical, crossed
	case fraction >= t.warnFraction:
		crossed = !t.crossedWarning
		t.crossedWarning = true
		return UsageWarning, crossed
	default:
		return UsageOK, false
	}
}

// UsageFraction returns total/context_limit.
func (t *TokenTracker) UsageFraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usageFractionLocked()
}

func (t *TokenTracker) usageFractionLocked() float64 {
	if t.contextLimit <= 0 {
		return 0
	}
	total := t.cumulativeInput + t.cumulativeOutput
	return float64(total) / float64(t.contextLimit)
}

// Snapshot returns a point-in-time copy suitable for embedding in a handoff
// document's token_usage_snapshot.
func (t *TokenTracker) Snapshot() TokenSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	ops := make([]Operation, len(t.operations))
	copy(ops, t.operations)
	return TokenSnapshot{
		ContextLimit:     t.contextLimit,
		CumulativeInput:  t.cumulativeInput,
		CumulativeOutput: t.cumulativeOutput,
		CumulativeCached: t.cumulativeCached,
		Operations:       ops,
		UsageFraction:    t.usageFractionLocked(),
	}
}

// TokenSnapshot is the serializable form of a TokenTracker at a point in time.
type TokenSnapshot struct {
	ContextLimit     int         `json:"context_limit"`
	CumulativeInput  int         `json:"cumulative_input"`
	CumulativeOutput int         `json:"cumulative_output"`
	CumulativeCached int         `json:"cumulative_cached"`
	Operations       []Operation `json:"operations"`
	UsageFraction    float64     `json:"usage_fraction"`
}
