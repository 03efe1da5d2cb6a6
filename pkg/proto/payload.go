package proto

import (
	"encoding/json"
	"fmt"
)

// PayloadKind discriminates the union carried by Envelope.Content.
type PayloadKind string

const (
	PayloadKindTask           PayloadKind = "task"
	PayloadKindTaskResponse   PayloadKind = "task_response"
	PayloadKindReviewRequest  PayloadKind = "review_request"
	PayloadKindReview         PayloadKind = "review"
	PayloadKindQuestion       PayloadKind = "question"
	PayloadKindAnswer         PayloadKind = "answer"
	PayloadKindStatus         PayloadKind = "status"
	PayloadKindError          PayloadKind = "error"
)

// Payload is a typed, discriminated union: Kind names which struct Data holds,
// forcing callers through the matching Extract method instead of a bare type
// assertion on map[string]any. A mismatch between Kind and the Extract call
// returns an explicit error rather than a zero-valued struct.
type Payload struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// TaskStatus enumerates TaskResponse outcomes.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is the Task entity (spec §3): a unit of work handed to an agent role.
type Task struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Priority    Priority          `json:"priority"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TokenUsage reports the cost of producing a TaskResponse.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TaskResponse is the Task Response entity (spec §3).
type TaskResponse struct {
	TaskID     string          `json:"task_id"`
	Status     TaskStatus      `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	TokenUsage TokenUsage      `json:"token_usage"`
	Error      string          `json:"error,omitempty"`
}

// Review is the Review entity (spec §3): the quality-loop verdict on an artifact.
type Review struct {
	Approved       bool     `json:"approved"`
	Score          int      `json:"score"`
	Feedback       []string `json:"feedback"`
	CriticalIssues []string `json:"critical_issues"`
	Suggestions    []string `json:"suggestions"`
	Iteration      int      `json:"iteration"`
}

// ReviewRequest asks a reviewer role to evaluate an opaque artifact.
type ReviewRequest struct {
	ArtifactID string          `json:"artifact_id"`
	Artifact   json.RawMessage `json:"artifact"`
	Iteration  int             `json:"iteration"`
}

// Question is a structured query sent to an agent (e.g. the handoff manager's
// "produce handoff content" interrogation).
type Question struct {
	Prompt  string            `json:"prompt"`
	Context map[string]string `json:"context,omitempty"`
}

// Answer is a free-form structured reply to a Question.
type Answer struct {
	Text json.RawMessage `json:"text"`
}

// StatusUpdate carries a progress snapshot, used for EnvelopeStatus messages.
type StatusUpdate struct {
	Phase            string `json:"phase"`
	CompletionPercent int   `json:"completion_percent"`
	Detail           string `json:"detail,omitempty"`
}

// ErrorPayload carries an out-of-band protocol error, used for EnvelopeError.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

func marshalPayload(kind PayloadKind, v any) *Payload {
	raw, err := json.Marshal(v)
	if err != nil {
		// Every payload type here is a plain struct of marshalable fields;
		// a failure indicates a programming error, not a runtime condition.
		panic(fmt.Sprintf("proto: marshal %s payload: %v", kind, err))
	}
	return &Payload{Kind: kind, Data: raw}
}

func NewTaskPayload(t *Task) *Payload                   { return marshalPayload(PayloadKindTask, t) }
func NewTaskResponsePayload(r *TaskResponse) *Payload   { return marshalPayload(PayloadKindTaskResponse, r) }
func NewReviewRequestPayload(r *ReviewRequest) *Payload { return marshalPayload(PayloadKindReviewRequest, r) }
func NewReviewPayload(r *Review) *Payload               { return marshalPayload(PayloadKindReview, r) }
func NewQuestionPayload(q *Question) *Payload           { return marshalPayload(PayloadKindQuestion, q) }
func NewAnswerPayload(a *Answer) *Payload               { return marshalPayload(PayloadKindAnswer, a) }
func NewStatusPayload(s *StatusUpdate) *Payload         { return marshalPayload(PayloadKindStatus, s) }
func NewErrorPayload(reason string) *Payload {
	return marshalPayload(PayloadKindError, &ErrorPayload{Reason: reason})
}

func (p *Payload) extract(kind PayloadKind, out any) error {
	if p == nil {
		return fmt.Errorf("proto: nil payload, expected %s", kind)
	}
	if p.Kind != kind {
		return fmt.Errorf("proto: expected %s payload, got %s", kind, p.Kind)
	}
	if err := json.Unmarshal(p.Data, out); err != nil {
		return fmt.Errorf("proto: unmarshal %s payload: %w", kind, err)
	}
	return nil
}

func (p *Payload) ExtractTask() (*Task, error) {
	var t Task
	if err := p.extract(PayloadKindTask, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Payload) ExtractTaskResponse() (*TaskResponse, error) {
	var r TaskResponse
	if err := p.extract(PayloadKindTaskResponse, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Payload) ExtractReviewRequest() (*ReviewRequest, error) {
	var r ReviewRequest
	if err := p.extract(PayloadKindReviewRequest, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Payload) ExtractReview() (*Review, error) {
	var r Review
	if err := p.extract(PayloadKindReview, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Payload) ExtractQuestion() (*Question, error) {
	var q Question
	if err := p.extract(PayloadKindQuestion, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (p *Payload) ExtractAnswer() (*Answer, error) {
	var a Answer
	if err := p.extract(PayloadKindAnswer, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Payload) ExtractStatus() (*StatusUpdate, error) {
	var s StatusUpdate
	if err := p.extract(PayloadKindStatus, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Payload) ExtractError() (*ErrorPayload, error) {
	var e ErrorPayload
	if err := p.extract(PayloadKindError, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
