package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentcore/pkg/handoff"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/proto"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
)

// taskDescription builds the text handed to role's agent, prepending the
// active handoff's continuation_prompt when the active instance for role is
// a handoff successor (spec §4.6 step 4: "the successor's system context is
// prepended with the continuation_prompt").
func (e *Engine) taskDescription(userID string, role registry.Role, base string) string {
	doc, err := e.handoffs.ActiveFor(userID, string(role))
	if handoff.IsNotFound(err) || err != nil || doc.ContinuationPrompt == "" {
		return base
	}
	var b strings.Builder
	b.WriteString(doc.ContinuationPrompt)
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}

// sendAgentTask acquires role's active instance, records the assignment on
// st (so CurrentAgentWorking/CurrentTaskDescription are durable before the
// task is dispatched), and dispatches through role's circuit breaker
// (spec §4.8), which gates retries (resilience.Do) wrapping a
// resilience.WithTimeout-bounded send_task call (spec §4.7); a step whose
// breaker is open fails with orcherrors.ErrCircuitOpen rather than being
// attempted (spec §7: "Circuit open -> workflow step marked failed"). On
// success, records token usage against the instance's tracker.
func (e *Engine) sendAgentTask(ctx context.Context, st *orchstate.State, role registry.Role, description string) (*proto.TaskResponse, error) {
	inst, err := e.acquireWorker(st.UserID, role)
	if err != nil {
		return nil, fmt.Errorf("workflow: acquire %s instance: %w", role, err)
	}

	st.CurrentAgentWorking = string(role)
	st.CurrentTaskDescription = description
	if err := e.states.Save(st); err != nil {
		return nil, fmt.Errorf("workflow: persist task assignment: %w", err)
	}

	task := &proto.Task{
		ID:          uuid.NewString(),
		Description: e.taskDescription(st.UserID, role, description),
		From:        "orchestrator",
		To:          inst.AgentID,
		Priority:    proto.PriorityMedium,
	}

	var resp *proto.TaskResponse
	breakerErr := e.breakerFor(role).Call(ctx, func(bctx context.Context) error {
		return resilience.Do(bctx, resilience.DefaultRetryPolicy(), func(attemptCtx context.Context) error {
			return resilience.WithTimeout(attemptCtx, e.cfg.AgentTaskTimeout, func(taskCtx context.Context) error {
				r, err := e.bus.SendTask(taskCtx, nil, "orchestrator", inst.AgentID, task)
				if err != nil {
					return err
				}
				resp = r
				return nil
			})
		})
	})
	if breakerErr != nil {
		return nil, fmt.Errorf("workflow: send_task to %s: %w", role, breakerErr)
	}

	e.registry.RecordUsage(st.UserID, inst, string(role)+":task", resp.TokenUsage.InputTokens, resp.TokenUsage.OutputTokens, 0)
	if resp.Status == proto.TaskFailed {
		return resp, fmt.Errorf("workflow: %s task failed: %s", role, resp.Error)
	}
	return resp, nil
}

// recordStepCompleted appends label to StepsCompleted and grows StepsTotal
// when the completed count has caught up to it (spec §4.4.5 Dynamic
// Progress), mutating st in place; the caller is responsible for persisting.
func recordStepCompleted(st *orchstate.State, growthDelta int, label string) {
	st.StepsCompleted = append(st.StepsCompleted, label)
	if len(st.StepsCompleted) >= st.StepsTotal {
		st.StepsTotal += growthDelta
	}
}

// ProgressPercent returns the user-visible completion percentage for st
// (spec §4.4.5: min(100, 100 * len(steps_completed) / steps_total)).
func ProgressPercent(st *orchstate.State) int {
	if st.StepsTotal <= 0 {
		return 0
	}
	pct := 100 * len(st.StepsCompleted) / st.StepsTotal
	if pct > 100 {
		pct = 100
	}
	return pct
}
