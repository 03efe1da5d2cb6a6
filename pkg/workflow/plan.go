package workflow

import (
	"context"
	"encoding/json"

	"agentcore/pkg/llmio"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/registry"
)

// Plan is the advisory output of planning (spec §4.4.1). The engine is free
// to add steps beyond EstimatedSteps as work is discovered.
type Plan struct {
	WorkflowType   orchstate.WorkflowType `json:"workflow_type"`
	AgentsNeeded   []registry.Role        `json:"agents_needed"`
	EstimatedSteps int                    `json:"estimated_steps"`
	Notes          string                 `json:"notes"`
}

const planningSystemPrompt = `You are the orchestrator's planning agent. Given a user's original request, ` +
	`respond with a JSON object {"workflow_type":"full_build|bug_fix|redeploy|design_only|custom",` +
	`"agents_needed":["designer","backend","frontend","code-reviewer","qa","devops"],` +
	`"estimated_steps":int,"notes":string}.`

// plan calls the LLM to produce a Plan, falling back to a conservative
// full_build default (spec §4.4.1 "planning is advisory") if the call fails
// or returns unparseable output, so a planning hiccup never blocks a
// workflow from starting.
func plan(ctx context.Context, llm llmio.LLMCaller, originalRequest string) *Plan {
	fallback := &Plan{
		WorkflowType:   orchstate.WorkflowFullBuild,
		AgentsNeeded:   []registry.Role{registry.RoleDesigner, registry.RoleBackend, registry.RoleCodeReviewer, registry.RoleDevOps},
		EstimatedSteps: 10,
		Notes:          "fallback plan: planner call failed or returned unparseable output",
	}
	if llm == nil {
		return fallback
	}

	resp, err := llm.Complete(ctx, llmio.CompletionRequest{
		Messages: []llmio.Message{
			llmio.SystemMessage(planningSystemPrompt),
			llmio.UserMessage(originalRequest),
		},
	})
	if err != nil {
		return fallback
	}

	var p Plan
	if err := json.Unmarshal([]byte(resp.Content), &p); err != nil || p.EstimatedSteps <= 0 {
		return fallback
	}
	if p.WorkflowType == "" {
		p.WorkflowType = orchstate.WorkflowFullBuild
	}
	return &p
}
