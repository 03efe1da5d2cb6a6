package workflow

import (
	"context"
	"fmt"
	"strings"

	"agentcore/pkg/orchstate"
	"agentcore/pkg/registry"
)

// runPlanning is a pass-through: StartWorkflow already ran the Planner and
// seeded WorkflowType/StepsTotal, so this handler only decides the first
// real phase and records the transition in the audit trail.
func runPlanning(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	if st.WorkflowType == orchstate.WorkflowRedeploy {
		return orchstate.PhaseDeployment, nil
	}
	return orchstate.PhaseDesign, nil
}

func runDesign(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	description := designTaskDescription(st)
	resp, err := e.sendAgentTask(ctx, st, registry.RoleDesigner, description)
	if err != nil {
		return "", err
	}
	st.CurrentDesignSpec = resp.Result
	recordStepCompleted(st, e.cfg.StepsGrowthDelta, "design")
	if err := e.states.Save(st); err != nil {
		return "", fmt.Errorf("workflow: persist design artifact: %w", err)
	}

	if st.WorkflowType == orchstate.WorkflowDesignOnly {
		return orchstate.PhaseCompleted, nil
	}
	if st.WorkflowType == orchstate.WorkflowFullBuild {
		return orchstate.PhaseBackend, nil
	}
	return orchstate.PhaseImplementation, nil
}

func designTaskDescription(st *orchstate.State) string {
	var b strings.Builder
	b.WriteString(st.OriginalPrompt)
	for _, r := range st.AccumulatedRefinements {
		b.WriteString("\nRefinement: ")
		b.WriteString(r)
	}
	return b.String()
}

func runBackend(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	description := "Implement the backend for this design spec:\n" + string(st.CurrentDesignSpec)
	resp, err := e.sendAgentTask(ctx, st, registry.RoleBackend, description)
	if err != nil {
		return "", err
	}
	st.CurrentImplementation = resp.Result
	recordStepCompleted(st, e.cfg.StepsGrowthDelta, "backend")
	if err := e.states.Save(st); err != nil {
		return "", fmt.Errorf("workflow: persist backend artifact: %w", err)
	}
	return orchstate.PhaseImplementation, nil
}

func runImplementation(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	description := "Implement this feature against the design spec:\n" + string(st.CurrentDesignSpec)
	if len(st.CurrentImplementation) > 0 {
		description = "Continue the implementation, applying the latest feedback:\n" + string(st.CurrentImplementation)
	}
	for _, r := range st.AccumulatedRefinements {
		description += "\nRefinement: " + r
	}
	resp, err := e.sendAgentTask(ctx, st, registry.RoleBackend, description)
	if err != nil {
		return "", err
	}
	st.CurrentImplementation = resp.Result
	recordStepCompleted(st, e.cfg.StepsGrowthDelta, "implementation")
	if err := e.states.Save(st); err != nil {
		return "", fmt.Errorf("workflow: persist implementation artifact: %w", err)
	}
	return orchstate.PhaseReview, nil
}
