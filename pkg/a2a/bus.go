// Package a2a implements the A2A Protocol (spec §4.7): a typed, in-process
// bus for orchestrator <-> agent communication. Grounded on the teacher's
// pkg/dispatch.Dispatcher, which keeps a registered-handler map and routes
// messages to reply channels; here the registration/routing idiom is kept
// but generalized from a story-queue dispatcher to the Task/Review/Question
// request-response vocabulary of pkg/proto, and the per-call timeout and
// span-nesting from spec §4.7 are wired in explicitly.
package a2a

import (
	"context"
	"fmt"
	"sync"

	"agentcore/pkg/orcherrors"
	"agentcore/pkg/proto"
	"agentcore/pkg/telemetry"
)

// Handler processes one inbound Envelope and returns the reply Envelope (or
// nil for a fire-and-forget send).
type Handler func(ctx context.Context, env *proto.Envelope) (*proto.Envelope, error)

// Bus is the in-process A2A message bus. At-most-once delivery within a
// single process lifetime; retries are the caller's responsibility (§4.8).
type Bus struct {
	tracer *telemetry.Tracer

	mu       sync.RWMutex
	handlers map[string]Handler // agent_id -> handler
	byRole   map[string][]string // role -> agent_ids, insertion order
}

// New builds an empty Bus.
func New(tracer *telemetry.Tracer) *Bus {
	return &Bus{
		tracer:   tracer,
		handlers: make(map[string]Handler),
		byRole:   make(map[string][]string),
	}
}

// Register attaches agentID's handler under role, making it reachable via
// LookupByRole and as a send_task/request_review target.
func (b *Bus) Register(agentID string, role proto.Role, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[agentID] = h
	b.byRole[string(role)] = append(b.byRole[string(role)], agentID)
}

// Unregister removes agentID from the bus entirely.
func (b *Bus) Unregister(agentID string, role proto.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, agentID)
	ids := b.byRole[string(role)]
	for i, id := range ids {
		if id == agentID {
			b.byRole[string(role)] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// LookupByRole returns every agent_id currently registered under role.
func (b *Bus) LookupByRole(role proto.Role) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.byRole[string(role)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (b *Bus) handlerFor(agentID string) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[agentID]
	return h, ok
}

// Send delivers env with no expectation of a reply and returns once the
// handler has accepted it (ack). Opens a child span of parent per spec §4.7.
func (b *Bus) Send(ctx context.Context, parent *telemetry.Span, env *proto.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	span := b.tracer.StartChild(parent, telemetry.SpanAgentTask)
	span.SetAttribute("to_agent", env.ToAgent)
	span.SetAttribute("type", string(env.Type))
	defer span.End()

	h, ok := b.handlerFor(env.ToAgent)
	if !ok {
		err := fmt.Errorf("a2a: no handler registered for %s: %w", env.ToAgent, orcherrors.ErrNotFound)
		span.Fail(err)
		return err
	}
	_, err := h(ctx, env)
	if err != nil {
		span.Fail(err)
	}
	return err
}

// SendTask delivers task to the agent identified by to, blocking for a
// TaskResponse within ctx's deadline. On timeout the returned TaskResponse
// has Status=failed, Error="timeout" and the error wraps
// orcherrors.ErrTaskTimeout (spec §4.7 delivery guarantees).
func (b *Bus) SendTask(ctx context.Context, parent *telemetry.Span, from, to string, task *proto.Task) (*proto.TaskResponse, error) {
	env, err := proto.NewEnvelope(from, to, proto.EnvelopeTaskRequest, proto.NewTaskPayload(task))
	if err != nil {
		return nil, err
	}

	span := b.tracer.StartChild(parent, telemetry.SpanAgentTask)
	span.SetAttribute("to_agent", to)
	span.SetAttribute("task_id", task.ID)
	defer span.End()

	h, ok := b.handlerFor(to)
	if !ok {
		err := fmt.Errorf("a2a: no handler registered for %s: %w", to, orcherrors.ErrNotFound)
		span.Fail(err)
		return nil, err
	}

	replyCh := make(chan *proto.Envelope, 1)
	errCh := make(chan error, 1)
	go func() {
		reply, err := h(ctx, env)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- reply
	}()

	select {
	case <-ctx.Done():
		err := fmt.Errorf("a2a: send_task %s: %w", task.ID, orcherrors.ErrTaskTimeout)
		span.Fail(err)
		return &proto.TaskResponse{TaskID: task.ID, Status: proto.TaskFailed, Error: "timeout"}, err
	case err := <-errCh:
		span.Fail(err)
		return nil, err
	case reply := <-replyCh:
		resp, err := reply.Content.ExtractTaskResponse()
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		if resp.Status == proto.TaskFailed {
			span.Fail(fmt.Errorf("a2a: task %s failed: %s", task.ID, resp.Error))
		}
		return resp, nil
	}
}

// RequestReview sends artifact to the reviewer identified by to and blocks
// for a Review within ctx's deadline.
func (b *Bus) RequestReview(ctx context.Context, parent *telemetry.Span, from, to string, req *proto.ReviewRequest) (*proto.Review, error) {
	env, err := proto.NewEnvelope(from, to, proto.EnvelopeReviewRequest, proto.NewReviewRequestPayload(req))
	if err != nil {
		return nil, err
	}

	span := b.tracer.StartChild(parent, telemetry.SpanAgentTask)
	span.SetAttribute("to_agent", to)
	span.SetAttribute("artifact_id", req.ArtifactID)
	defer span.End()

	h, ok := b.handlerFor(to)
	if !ok {
		err := fmt.Errorf("a2a: no handler registered for %s: %w", to, orcherrors.ErrNotFound)
		span.Fail(err)
		return nil, err
	}

	replyCh := make(chan *proto.Envelope, 1)
	errCh := make(chan error, 1)
	go func() {
		reply, err := h(ctx, env)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- reply
	}()

	select {
	case <-ctx.Done():
		err := fmt.Errorf("a2a: request_review %s: %w", req.ArtifactID, orcherrors.ErrTaskTimeout)
		span.Fail(err)
		return nil, err
	case err := <-errCh:
		span.Fail(err)
		return nil, err
	case reply := <-replyCh:
		review, err := reply.Content.ExtractReview()
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		return review, nil
	}
}

// Ask sends q to the agent identified by to and blocks for an Answer within
// ctx's deadline, the same request/reply shape as SendTask and
// RequestReview. Used by the Handoff Manager to interrogate a source
// instance for its handoff self-report (spec §4.6 step 2).
func (b *Bus) Ask(ctx context.Context, parent *telemetry.Span, from, to string, q *proto.Question) (*proto.Answer, error) {
	env, err := proto.NewEnvelope(from, to, proto.EnvelopeQuestion, proto.NewQuestionPayload(q))
	if err != nil {
		return nil, err
	}

	span := b.tracer.StartChild(parent, telemetry.SpanAgentTask)
	span.SetAttribute("to_agent", to)
	defer span.End()

	h, ok := b.handlerFor(to)
	if !ok {
		err := fmt.Errorf("a2a: no handler registered for %s: %w", to, orcherrors.ErrNotFound)
		span.Fail(err)
		return nil, err
	}

	replyCh := make(chan *proto.Envelope, 1)
	errCh := make(chan error, 1)
	go func() {
		reply, err := h(ctx, env)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- reply
	}()

	select {
	case <-ctx.Done():
		err := fmt.Errorf("a2a: ask %s: %w", to, orcherrors.ErrTaskTimeout)
		span.Fail(err)
		return nil, err
	case err := <-errCh:
		span.Fail(err)
		return nil, err
	case reply := <-replyCh:
		answer, err := reply.Content.ExtractAnswer()
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		return answer, nil
	}
}
