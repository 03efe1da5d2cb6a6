package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"agentcore/pkg/agent"
	"agentcore/pkg/handoff"
	"agentcore/pkg/proto"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
)

// selfReport is the shape agent.Worker's handleQuestion asks an instance to
// self-report in (spec §4.6 step 2); parsed from the instance's Answer.
type selfReport struct {
	Summary              string                         `json:"summary"`
	CurrentWIP            string                         `json:"current_wip"`
	Decisions             []handoff.Decision             `json:"decisions"`
	RejectedAlternatives  []handoff.RejectedAlternative  `json:"rejected_alternatives"`
	Todos                 []handoff.TodoItem             `json:"todos"`
	Assumptions           []string                       `json:"assumptions"`
}

// initiateHandoff implements the six-step protocol of spec §4.6 for inst,
// triggered by the Agent Registry's OnCritical callback (wired in New). It
// returns the successor Instance.
func (e *Engine) initiateHandoff(ctx context.Context, userID string, inst *registry.Instance, reason string) (*registry.Instance, error) {
	// Step 1: source instance stops receiving new tasks.
	e.registry.MarkHandoffPending(userID, inst)

	// Step 2: interrogate the source instance; fall back to a skeleton
	// document on any failure or unparseable output rather than block the
	// handoff on a well-formed self-report.
	doc := e.buildHandoffDocument(ctx, userID, inst, reason)

	// Step 3: persist the document as the active handoff for this role,
	// after deactivating any prior active handoff (handoff.Store.Save does
	// both, as two separate writes). If persistence fails, the predecessor is NOT terminated
	// (spec: "a handoff is atomic... partial state must never be lost").
	if err := e.handoffs.Save(doc); err != nil {
		return nil, fmt.Errorf("workflow: persist handoff document: %w", err)
	}

	// Steps 4-6: spawn the successor, terminate the predecessor, update the
	// registry's active slot, and let the caller resume against the
	// successor. CompleteHandoff fires OnTerminated (unregistering the
	// predecessor from the bus) asynchronously.
	successor, err := e.registry.CompleteHandoff(userID, inst.Role, inst, doc.HandoffID)
	if err != nil {
		return nil, fmt.Errorf("workflow: complete handoff: %w", err)
	}

	w := agent.New(proto.Role(successor.Role), e.llm, e.tools, e.log)
	e.bus.Register(successor.AgentID, proto.Role(successor.Role), w.Handle)

	e.notifier.Notify(ctx, userID, fmt.Sprintf("Switched to a fresh %s agent instance to continue within budget.", successor.Role))
	_ = e.states.AppendAudit(userID, "agent_handoff", map[string]string{
		"role": string(successor.Role), "handoff_id": doc.HandoffID, "reason": reason,
	})
	return successor, nil
}

func (e *Engine) buildHandoffDocument(ctx context.Context, userID string, inst *registry.Instance, reason string) *handoff.Document {
	q := &proto.Question{Prompt: "produce_handoff_content"}

	var answer *proto.Answer
	askErr := e.breakerFor(inst.Role).Call(ctx, func(bctx context.Context) error {
		return resilience.WithTimeout(bctx, e.cfg.AgentTaskTimeout, func(askCtx context.Context) error {
			a, err := e.bus.Ask(askCtx, nil, "orchestrator", inst.AgentID, q)
			if err != nil {
				return err
			}
			answer = a
			return nil
		})
	})
	if askErr != nil {
		return handoff.Skeleton(userID, string(inst.Role),
			handoff.SourceAgent{ID: inst.AgentID, Role: string(inst.Role), Version: inst.Version, TerminationReason: reason},
			handoff.TargetAgent{Role: string(inst.Role), ExpectedVersion: inst.Version + 1})
	}

	var quoted string
	if err := json.Unmarshal(answer.Text, &quoted); err != nil {
		quoted = string(answer.Text)
	}
	var report selfReport
	if err := json.Unmarshal([]byte(quoted), &report); err != nil {
		return handoff.Skeleton(userID, string(inst.Role),
			handoff.SourceAgent{ID: inst.AgentID, Role: string(inst.Role), Version: inst.Version, TerminationReason: reason},
			handoff.TargetAgent{Role: string(inst.Role), ExpectedVersion: inst.Version + 1})
	}

	snapshot, _ := json.Marshal(inst.Tokens.Snapshot())
	return &handoff.Document{
		UserID:               userID,
		Role:                 string(inst.Role),
		SourceAgent:          handoff.SourceAgent{ID: inst.AgentID, Role: string(inst.Role), Version: inst.Version, TerminationReason: reason},
		TargetAgent:          handoff.TargetAgent{Role: string(inst.Role), ExpectedVersion: inst.Version + 1},
		TokenUsageSnapshot:   snapshot,
		TaskProgress:         handoff.TaskProgress{Status: "in_progress"},
		WorkCompleted:        handoff.WorkCompleted{Summary: report.Summary},
		CurrentWIP:           report.CurrentWIP,
		DecisionsMade:        report.Decisions,
		RejectedAlternatives: report.RejectedAlternatives,
		TodoList:             report.Todos,
		Assumptions:          report.Assumptions,
	}
}
