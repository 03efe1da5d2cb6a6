// Package agent implements the generic, LLM-backed Agent Instance behavior
// that answers A2A tasks and review requests. Grounded on the teacher's
// pkg/agent/driver.go (a single role-parameterized driver loop rather than
// one hand-written type per specialization) and pkg/agent/llm.go (the
// completion-call seam); the per-role prompt differences are data, not code.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"agentcore/pkg/llmio"
	"agentcore/pkg/logx"
	"agentcore/pkg/proto"
	"agentcore/pkg/toolprovider"
)

// RolePrompt is the fixed system preamble for a role, optionally prefixed at
// call time with a Handoff continuation_prompt (spec §4.6 step 4).
var RolePrompt = map[proto.Role]string{
	proto.RoleDesigner:     "You are the design agent. Produce a structured design specification for the requested feature.",
	proto.RoleBackend:      "You are the backend agent. Produce backend implementation artifacts satisfying the design spec.",
	proto.RoleFrontend:     "You are the frontend agent. Produce frontend implementation artifacts satisfying the design spec.",
	proto.RoleCodeReviewer: "You are the code review agent. Evaluate the submitted artifact and return a JSON Review.",
	proto.RoleQA:           "You are the QA agent. Evaluate the submitted artifact against acceptance criteria and return a JSON Review.",
	proto.RoleDevOps:       "You are the deployment agent. Advise on deploy readiness for the submitted artifact.",
}

// Worker answers A2A Envelopes for a single role by calling through the
// LLMCaller seam (and, for tool-driving roles, the Provider façade). One
// Worker is shared across every Instance of its role; state that varies per
// instance (handoff continuation prompt, accumulated context) travels on the
// Task/ReviewRequest payload instead of living on the Worker.
type Worker struct {
	role  proto.Role
	llm   llmio.LLMCaller
	tools toolprovider.Provider
	log   *logx.Logger
}

// New builds a Worker for role. tools may be nil for roles that never
// invoke the Tool Provider directly (the Workflow Engine itself drives
// deploy/tool calls for the devops role; see pkg/workflow/deploy.go).
func New(role proto.Role, llm llmio.LLMCaller, tools toolprovider.Provider, log *logx.Logger) *Worker {
	return &Worker{role: role, llm: llm, tools: tools, log: log}
}

// Handle is the agent's a2a.Handler: it dispatches on envelope type and
// returns the matching typed response envelope.
func (w *Worker) Handle(ctx context.Context, env *proto.Envelope) (*proto.Envelope, error) {
	switch env.Type {
	case proto.EnvelopeTaskRequest:
		return w.handleTask(ctx, env)
	case proto.EnvelopeReviewRequest:
		return w.handleReview(ctx, env)
	case proto.EnvelopeQuestion:
		return w.handleQuestion(ctx, env)
	default:
		return nil, fmt.Errorf("agent: worker for role %s cannot handle envelope type %s", w.role, env.Type)
	}
}

// handoffReportPrompt asks the instance to self-report, in the Handoff
// Document's vocabulary, the shape the Handoff Manager interrogates it for
// (spec §4.6 step 2). Parsed into handoff.SelfReport by the caller.
const handoffReportPrompt = `Produce a JSON object summarizing your work so a successor instance can ` +
	`continue without re-deriving context: {"summary":string,"current_wip":string,` +
	`"decisions":[{"decision":string,"reasoning":string}],` +
	`"rejected_alternatives":[{"alternative":string,"reason":string}],` +
	`"todos":[{"task":string,"priority":string}],"assumptions":[string]}.`

func (w *Worker) handleQuestion(ctx context.Context, env *proto.Envelope) (*proto.Envelope, error) {
	q, err := env.Content.ExtractQuestion()
	if err != nil {
		return nil, fmt.Errorf("agent: extract question: %w", err)
	}

	req := llmio.CompletionRequest{
		Messages: []llmio.Message{
			llmio.SystemMessage(RolePrompt[w.role]),
			llmio.UserMessage(q.Prompt),
		},
	}
	resp, err := w.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent: question completion: %w", err)
	}

	answer := &proto.Answer{Text: json.RawMessage(mustQuote(resp.Content))}
	return proto.NewEnvelope(env.ToAgent, env.FromAgent, proto.EnvelopeAnswer, proto.NewAnswerPayload(answer))
}

func (w *Worker) handleTask(ctx context.Context, env *proto.Envelope) (*proto.Envelope, error) {
	task, err := env.Content.ExtractTask()
	if err != nil {
		return nil, fmt.Errorf("agent: extract task: %w", err)
	}

	req := llmio.CompletionRequest{
		Messages: []llmio.Message{
			llmio.SystemMessage(RolePrompt[w.role]),
			llmio.UserMessage(task.Description),
		},
	}
	resp, err := w.llm.Complete(ctx, req)
	if err != nil {
		w.log.Warn("agent: role %s task %s completion failed: %v", w.role, task.ID, err)
		response := &proto.TaskResponse{TaskID: task.ID, Status: proto.TaskFailed, Error: err.Error()}
		return proto.NewEnvelope(task.To, task.From, proto.EnvelopeTaskResponse, proto.NewTaskResponsePayload(response))
	}

	response := &proto.TaskResponse{
		TaskID: task.ID,
		Status: proto.TaskCompleted,
		Result: json.RawMessage(mustQuote(resp.Content)),
		TokenUsage: proto.TokenUsage{
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		},
	}
	return proto.NewEnvelope(task.To, task.From, proto.EnvelopeTaskResponse, proto.NewTaskResponsePayload(response))
}

func (w *Worker) handleReview(ctx context.Context, env *proto.Envelope) (*proto.Envelope, error) {
	reviewReq, err := env.Content.ExtractReviewRequest()
	if err != nil {
		return nil, fmt.Errorf("agent: extract review request: %w", err)
	}

	req := llmio.CompletionRequest{
		Messages: []llmio.Message{
			llmio.SystemMessage(RolePrompt[w.role] + " Respond with a JSON object: {\"approved\":bool,\"score\":int,\"feedback\":[string],\"critical_issues\":[string],\"suggestions\":[string]}."),
			llmio.UserMessage(string(reviewReq.Artifact)),
		},
	}
	resp, err := w.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent: review completion: %w", err)
	}

	var review proto.Review
	if err := json.Unmarshal([]byte(resp.Content), &review); err != nil {
		// The reviewer returned text we cannot parse as structured output;
		// fail closed with a low score rather than guess at approval.
		review = proto.Review{Approved: false, Score: 0, Feedback: []string{"unparseable reviewer output"}}
	}
	review.Iteration = reviewReq.Iteration

	return proto.NewEnvelope(env.ToAgent, env.FromAgent, proto.EnvelopeReviewResponse, proto.NewReviewPayload(&review))
}

func mustQuote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return []byte(`""`)
	}
	return b
}
