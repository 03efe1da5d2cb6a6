package resilience

import (
	"context"
	"time"

	"agentcore/pkg/orcherrors"
)

// WithTimeout runs fn with a child context bounded by timeout, distinguishing
// the parent context's own cancellation from an actual timeout expiry so
// callers can tell "caller gave up" from "this call was slow" (grounded on
// the teacher's pkg/agent/timeout.go StateTimeoutWrapper race-the-channel
// pattern, including panic recovery around fn since it may run
// caller-supplied agent code).
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	childCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- orcherrors.NewTransient("bounded_call", errFromRecover(r))
			}
		}()
		done <- fn(childCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-childCtx.Done():
		if ctx.Err() != nil {
			// The parent was cancelled, not this call's own deadline.
			return ctx.Err()
		}
		return orcherrors.ErrTaskTimeout
	}
}

func errFromRecover(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{r}
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "panic recovered in bounded call" }
