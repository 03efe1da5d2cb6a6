// Package resilience shields external integrations (LLM calls, the chat
// transport, the tool provider) from transient failures and cascading faults:
// exponential backoff retry, a per-service circuit breaker, a bounded
// iterate-with-cap-and-tie-break loop shared by the quality loop and the
// deployment retry loop, and an LRU+TTL classifier cache.
//
// Retry's backoff arithmetic is grounded on the teacher's
// pkg/limiter.ModelLimiter token-bucket refill calculation: the same
// "elapsed time since last event" shape, applied to a delay instead of a
// budget refill.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"agentcore/pkg/orcherrors"
)

// RetryPolicy configures exponential backoff with jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy mirrors spec §6.7's retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		Factor:      2.0,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// delayForAttempt computes the backoff delay before attempt n (1-indexed),
// the same elapsed-time-scaled arithmetic shape as the teacher's token-bucket
// refill, applied to a growing delay instead of a shrinking budget.
func (p RetryPolicy) delayForAttempt(n int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(n-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d = d * (0.5 + rand.Float64()*0.5) //nolint:gosec // jitter need not be cryptographically random
	}
	return time.Duration(d)
}

// Retryable is satisfied by errors that should be retried. Callers that
// cannot classify an error default to retrying orcherrors.ErrTransientExternal
// and its wrapped forms.
type Retryable interface {
	ShouldRetry() bool
}

// shouldRetry classifies err using the Retryable interface first, falling
// back to errors.Is against the transient sentinel.
func shouldRetry(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.ShouldRetry()
	}
	return errors.Is(err, orcherrors.ErrTransientExternal)
}

// Do runs fn up to policy.MaxAttempts times, sleeping with exponential
// backoff between attempts, until fn succeeds, ctx is cancelled, or fn
// returns a non-retryable error. The last failure is returned verbatim
// (spec §4.8: "Last failure is re-raised").
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delayForAttempt(attempt)):
		}
	}
	return lastErr
}
