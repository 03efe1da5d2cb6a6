// Package telemetry implements the explicit parent-child span model required
// by spec §9 ("Thread-local or framework-instrumented telemetry" →
// "explicit context object threaded through workflow calls"). A Span carries
// its parent's identity explicitly; nothing is read from a goroutine-local or
// context.Context implicitly, though callers are free to stash a *Span in a
// context.Context themselves.
//
// Span names reproduce the hierarchy diagram of spec §4.10 as literal
// constants so every call site names spans the same way.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Span name constants, one literal per node in the spec's span hierarchy.
const (
	SpanUserRequest          = "user_request"
	SpanWorkflow             = "workflow"
	SpanAgentLifecycle       = "agent_lifecycle"
	SpanAgentSpawn           = "agent_spawn"
	SpanAgentTask            = "agent_task"
	SpanLLMCall              = "llm_call"
	SpanToolCall             = "tool_call"
	SpanTokenUsageRecorded   = "token_usage_recorded"
	SpanAgentThresholdWarn   = "agent_threshold:warning"
	SpanAgentThresholdCrit   = "agent_threshold:critical"
	SpanAgentHandoff         = "agent_handoff"
	SpanHandoffDocCreated    = "handoff_document_created"
	SpanDatabaseSaveHandoff  = "database_save:agent_handoff"
	SpanAgentCleanup         = "agent_cleanup"
	SpanPhaseTransition      = "phase_transition"
)

// Span is one node of a causal, hierarchical trace. Attribute values are
// expected to stay small (< 1 KiB per spec §4.10); callers hash any
// user-identifying value before attaching it.
type Span struct {
	ID         string
	ParentID   string
	TraceID    string
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]string
	Err        error

	mu     sync.Mutex
	ended  bool
	tracer *Tracer
}

// Tracer is the process-local span factory and the sink that feeds
// Prometheus counters/gauges on span completion. It holds no hidden globals;
// callers own one Tracer per process and pass it by reference (per the
// composition-of-services REDESIGN FLAG).
type Tracer struct {
	metrics *Metrics
}

// NewTracer builds a Tracer backed by the given Metrics exporter.
func NewTracer(m *Metrics) *Tracer {
	return &Tracer{metrics: m}
}

// StartRoot begins a new trace with a fresh trace ID and no parent.
func (t *Tracer) StartRoot(name string) *Span {
	span := &Span{
		ID:         uuid.NewString(),
		TraceID:    uuid.NewString(),
		Name:       name,
		StartTime:  time.Now().UTC(),
		Attributes: make(map[string]string),
		tracer:     t,
	}
	if t != nil && t.metrics != nil {
		t.metrics.ActiveSpans.WithLabelValues(name).Inc()
	}
	return span
}

// StartChild begins a span whose parent context is threaded explicitly from
// parent, inheriting its trace ID. parent may be nil only for tests; normal
// call sites always thread a non-nil parent per spec §4.10's rule that every
// child span carries the parent's context explicitly.
func (t *Tracer) StartChild(parent *Span, name string) *Span {
	span := &Span{
		ID:         uuid.NewString(),
		Name:       name,
		StartTime:  time.Now().UTC(),
		Attributes: make(map[string]string),
		tracer:     t,
	}
	if parent != nil {
		span.ParentID = parent.ID
		span.TraceID = parent.TraceID
	} else {
		span.TraceID = uuid.NewString()
	}
	if t != nil && t.metrics != nil {
		t.metrics.ActiveSpans.WithLabelValues(name).Inc()
	}
	return span
}

// SetAttribute attaches a small string attribute to the span.
func (s *Span) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

// Fail attaches an error to the span; it does not end the span.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// End closes the span, recording its duration and, if a Tracer with Metrics
// is attached, exporting a duration observation and decrementing the active
// gauge. End is idempotent: a second call is a no-op, tolerating re-entrant
// defer patterns.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.EndTime = time.Now().UTC()

	if s.tracer == nil || s.tracer.metrics == nil {
		return
	}
	m := s.tracer.metrics
	duration := s.EndTime.Sub(s.StartTime).Seconds()
	m.SpanDuration.WithLabelValues(s.Name).Observe(duration)
	m.ActiveSpans.WithLabelValues(s.Name).Dec()
	if s.Err != nil {
		m.SpanErrors.WithLabelValues(s.Name).Inc()
	}
}

// Duration returns the span's elapsed time; zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// String renders a human-readable one-liner, useful in debug logs.
func (s *Span) String() string {
	return fmt.Sprintf("span(%s id=%s parent=%s trace=%s)", s.Name, s.ID, s.ParentID, s.TraceID)
}
