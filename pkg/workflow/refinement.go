package workflow

import (
	"context"
	"fmt"

	"agentcore/pkg/orchstate"
)

// Refine records a refinement classified against userID's active workflow
// (spec §4.4.6). Design and implementation phase handlers consult
// accumulated_refinements directly on their next invocation (design:
// designTaskDescription, implementation: runImplementation); a refinement
// recorded while the engine is already synchronously executing a later
// phase (review, deployment) is durably queued for audit and for any future
// re-invocation of that phase, per the phase-specific hooks of spec §4.4.6,
// but cannot retroactively interrupt a phase call already in flight — this
// engine has no concurrent re-entry into a running phase.
func (e *Engine) Refine(ctx context.Context, userID, refinementText string) error {
	st, err := e.states.Load(userID)
	if err != nil {
		return fmt.Errorf("workflow: load state for refinement: %w", err)
	}
	st.AccumulatedRefinements = append(st.AccumulatedRefinements, refinementText)
	if err := e.states.Save(st); err != nil {
		return fmt.Errorf("workflow: persist refinement: %w", err)
	}
	return e.states.AppendAudit(userID, "refinement_queued", map[string]string{
		"phase": string(st.CurrentPhase), "text": refinementText,
	})
}

// StatusSnapshot is the formatted response to a status_query classification
// (spec §4.1.1).
type StatusSnapshot struct {
	Phase            orchstate.Phase `json:"phase"`
	ProgressPercent  int             `json:"progress_percent"`
	StepsCompleted   int             `json:"steps_completed"`
	StepsTotal       int             `json:"steps_total"`
	CurrentAgent     string          `json:"current_agent"`
	CurrentTask      string          `json:"current_task"`
}

// Status returns userID's current progress snapshot.
func (e *Engine) Status(ctx context.Context, userID string) (*StatusSnapshot, error) {
	st, err := e.states.Load(userID)
	if err != nil {
		return nil, err
	}
	return &StatusSnapshot{
		Phase:           st.CurrentPhase,
		ProgressPercent: ProgressPercent(st),
		StepsCompleted:  len(st.StepsCompleted),
		StepsTotal:      st.StepsTotal,
		CurrentAgent:    st.CurrentAgentWorking,
		CurrentTask:     st.CurrentTaskDescription,
	}, nil
}
