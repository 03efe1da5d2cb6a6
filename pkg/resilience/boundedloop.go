package resilience

import "context"

// LoopOutcome is returned by a BoundedLoop step to say what happens next.
type LoopOutcome int

const (
	// LoopContinue means neither success nor a tie-break exit: run another iteration.
	LoopContinue LoopOutcome = iota
	// LoopSucceed ends the loop successfully.
	LoopSucceed
	// LoopTieBreakExit ends the loop without success, via a caller-defined
	// tie-break rule (e.g. spec §4.4.3: same boundary score twice in a row).
	LoopTieBreakExit
)

// LoopResult summarizes how a BoundedLoop ended.
type LoopResult struct {
	Iterations int
	Outcome    LoopOutcome
	// CapReached is true when the loop stopped only because maxIterations was
	// exhausted, not because step returned LoopSucceed/LoopTieBreakExit.
	CapReached bool
}

// BoundedLoop runs step up to maxIterations times (1-indexed), stopping as
// soon as step reports LoopSucceed or LoopTieBreakExit, ctx is cancelled, or
// step returns an error. It is the single combinator shared by the Quality
// Loop (§4.4.3) and the Deployment Retry loop (§4.4.4), unifying what the
// source sometimes implemented as two separate loops (spec §9 REDESIGN FLAG).
func BoundedLoop(ctx context.Context, maxIterations int, step func(ctx context.Context, iteration int) (LoopOutcome, error)) (LoopResult, error) {
	for i := 1; i <= maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return LoopResult{Iterations: i - 1}, err
		}
		outcome, err := step(ctx, i)
		if err != nil {
			return LoopResult{Iterations: i, Outcome: outcome}, err
		}
		if outcome == LoopSucceed || outcome == LoopTieBreakExit {
			return LoopResult{Iterations: i, Outcome: outcome}, nil
		}
	}
	return LoopResult{Iterations: maxIterations, Outcome: LoopContinue, CapReached: true}, nil
}
