// Package proto defines the A2A (agent-to-agent) wire types: the Envelope that
// every bus message travels in, and the typed Task/TaskResponse/Review payloads
// it carries. Generalized from a story/code specific message protocol to a
// role/task vocabulary: the envelope shape and the typed-union payload
// discipline are unchanged, only the domain vocabulary differs.
package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeType discriminates the kind of content an Envelope carries.
type EnvelopeType string

const (
	EnvelopeTaskRequest    EnvelopeType = "task_request"
	EnvelopeTaskResponse   EnvelopeType = "task_response"
	EnvelopeReviewRequest  EnvelopeType = "review_request"
	EnvelopeReviewResponse EnvelopeType = "review_response"
	EnvelopeQuestion       EnvelopeType = "question"
	EnvelopeAnswer         EnvelopeType = "answer"
	EnvelopeStatus         EnvelopeType = "status"
	EnvelopeError          EnvelopeType = "error"
)

var validEnvelopeTypes = map[EnvelopeType]bool{
	EnvelopeTaskRequest: true, EnvelopeTaskResponse: true,
	EnvelopeReviewRequest: true, EnvelopeReviewResponse: true,
	EnvelopeQuestion: true, EnvelopeAnswer: true,
	EnvelopeStatus: true, EnvelopeError: true,
}

// ValidateEnvelopeType reports whether t is one of the known envelope types.
func ValidateEnvelopeType(t EnvelopeType) error {
	if !validEnvelopeTypes[t] {
		return fmt.Errorf("proto: invalid envelope type %q", t)
	}
	return nil
}

// Role enumerates the specialized agent roles the registry can instantiate.
type Role string

const (
	RoleDesigner     Role = "designer"
	RoleBackend      Role = "backend"
	RoleFrontend     Role = "frontend"
	RoleCodeReviewer Role = "code-reviewer"
	RoleQA           Role = "qa"
	RoleDevOps       Role = "devops"
)

// Priority mirrors the three-level priority carried on a Task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Envelope is the A2A Envelope entity (spec §3): every message crossing
// pkg/a2a.Bus is one of these. Content is a typed, discriminated payload
// rather than map[string]any so a receiver's Extract call fails loudly on a
// shape mismatch instead of silently returning zero values.
type Envelope struct {
	MessageID string          `json:"message_id"`
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"`
	Type      EnvelopeType    `json:"type"`
	Content   *Payload        `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope builds an Envelope with a fresh message ID and the current time.
func NewEnvelope(from, to string, typ EnvelopeType, content *Payload) (*Envelope, error) {
	if err := ValidateEnvelopeType(typ); err != nil {
		return nil, err
	}
	return &Envelope{
		MessageID: uuid.NewString(),
		FromAgent: from,
		ToAgent:   to,
		Type:      typ,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}, nil
}

// Clone returns a deep copy safe for concurrent mutation by sender and receiver.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Content != nil {
		contentCopy := *e.Content
		dataCopy := make(json.RawMessage, len(e.Content.Data))
		copy(dataCopy, e.Content.Data)
		contentCopy.Data = dataCopy
		clone.Content = &contentCopy
	}
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Validate checks required fields are populated and content matches type.
func (e *Envelope) Validate() error {
	if e.MessageID == "" {
		return fmt.Errorf("proto: envelope missing message_id")
	}
	if e.FromAgent == "" || e.ToAgent == "" {
		return fmt.Errorf("proto: envelope missing from_agent/to_agent")
	}
	if err := ValidateEnvelopeType(e.Type); err != nil {
		return err
	}
	if e.Content == nil {
		return fmt.Errorf("proto: envelope %s missing content", e.MessageID)
	}
	return nil
}
