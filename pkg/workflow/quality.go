package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"agentcore/pkg/orchstate"
	"agentcore/pkg/proto"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
)

// reviewerRoles are fanned out to concurrently on every quality-loop
// iteration (spec §4.4 added detail): code review and QA evaluate the same
// artifact independently, and the loop only advances once both agree.
var reviewerRoles = []registry.Role{registry.RoleCodeReviewer, registry.RoleQA}

// runReview implements the Quality Loop (spec §4.4.3) as a single
// pkg/resilience.BoundedLoop instantiation: each iteration requests a
// review of the current implementation artifact and, if it falls short,
// forwards feedback to the implementer before looping — all without
// leaving the review phase, matching the spec's review -> implementation
// self-loop being internal to this phase rather than a phase-machine edge.
func runReview(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	prevScore := -1
	var stepErr error

	result, err := resilience.BoundedLoop(ctx, e.cfg.MaxReviewIter, func(ctx context.Context, iteration int) (resilience.LoopOutcome, error) {
		review, err := e.sendReviewRequest(ctx, st, iteration)
		if err != nil {
			stepErr = err
			return resilience.LoopContinue, err
		}

		if review.Approved && review.Score >= e.cfg.MinQuality {
			return resilience.LoopSucceed, nil
		}
		if review.Score == e.cfg.MinQuality-1 {
			if prevScore == e.cfg.MinQuality-1 {
				_ = e.states.AppendAudit(st.UserID, "quality_loop_tie_break", map[string]any{"iteration": iteration, "score": review.Score})
				return resilience.LoopTieBreakExit, nil
			}
			prevScore = review.Score
		} else {
			prevScore = -1
		}

		resp, err := e.sendAgentTask(ctx, st, registry.RoleBackend, refinementTaskDescription(review))
		if err != nil {
			stepErr = err
			return resilience.LoopContinue, err
		}
		st.CurrentImplementation = resp.Result
		return resilience.LoopContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("workflow: quality loop: %w", err)
	}
	if stepErr != nil {
		return "", fmt.Errorf("workflow: quality loop: %w", stepErr)
	}

	recordStepCompleted(st, e.cfg.StepsGrowthDelta, fmt.Sprintf("review(%d iterations, %s)", result.Iterations, result.Outcome))
	if err := e.states.Save(st); err != nil {
		return "", fmt.Errorf("workflow: persist review outcome: %w", err)
	}
	return orchstate.PhaseDeployment, nil
}

// sendReviewRequest fans a single review request out to every reviewer
// role concurrently (golang.org/x/sync/errgroup, spec §4.4 added detail),
// cancelling the remaining calls on the first error, then merges the
// independent verdicts: approval and the pass/fail score both require
// every reviewer to agree, while feedback/critical-issues/suggestions are
// concatenated so nothing either reviewer raised is lost.
func (e *Engine) sendReviewRequest(ctx context.Context, st *orchstate.State, iteration int) (*proto.Review, error) {
	reviews := make([]*proto.Review, len(reviewerRoles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range reviewerRoles {
		i, role := i, role
		g.Go(func() error {
			inst, err := e.acquireWorker(st.UserID, role)
			if err != nil {
				return fmt.Errorf("acquire %s instance: %w", role, err)
			}

			req := &proto.ReviewRequest{ArtifactID: st.UserID, Artifact: st.CurrentImplementation, Iteration: iteration}

			var review *proto.Review
			breakerErr := e.breakerFor(role).Call(gctx, func(bctx context.Context) error {
				return resilience.Do(bctx, resilience.DefaultRetryPolicy(), func(attemptCtx context.Context) error {
					return resilience.WithTimeout(attemptCtx, e.cfg.AgentTaskTimeout, func(reviewCtx context.Context) error {
						r, err := e.bus.RequestReview(reviewCtx, nil, "orchestrator", inst.AgentID, req)
						if err != nil {
							return err
						}
						review = r
						return nil
					})
				})
			})
			if breakerErr != nil {
				return fmt.Errorf("request_review(%s): %w", role, breakerErr)
			}
			reviews[i] = review
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeReviews(reviews), nil
}

// mergeReviews combines independent reviewer verdicts into the single
// Review the quality loop evaluates: unanimous approval, the minimum score
// (the loop should not advance faster than its most critical reviewer),
// and every reviewer's feedback concatenated.
func mergeReviews(reviews []*proto.Review) *proto.Review {
	merged := &proto.Review{Approved: true, Score: reviews[0].Score, Iteration: reviews[0].Iteration}
	for _, r := range reviews {
		if !r.Approved {
			merged.Approved = false
		}
		if r.Score < merged.Score {
			merged.Score = r.Score
		}
		merged.Feedback = append(merged.Feedback, r.Feedback...)
		merged.CriticalIssues = append(merged.CriticalIssues, r.CriticalIssues...)
		merged.Suggestions = append(merged.Suggestions, r.Suggestions...)
	}
	return merged
}

func refinementTaskDescription(review *proto.Review) string {
	var b strings.Builder
	b.WriteString("Address this review feedback:\n")
	for _, f := range review.Feedback {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if len(review.CriticalIssues) > 0 {
		b.WriteString("Critical issues (must fix):\n")
		for _, c := range review.CriticalIssues {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	for _, s := range review.Suggestions {
		b.WriteString("Suggestion: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
