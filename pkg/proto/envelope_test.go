package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeValidType(t *testing.T) {
	task := NewTaskPayload(&Task{ID: "t1", Description: "build", From: "orchestrator", To: "backend_v1", Priority: PriorityHigh})
	env, err := NewEnvelope("orchestrator", "backend_v1", EnvelopeTaskRequest, task)
	require.NoError(t, err)
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, EnvelopeTaskRequest, env.Type)
	require.NoError(t, env.Validate())
}

func TestNewEnvelopeRejectsUnknownType(t *testing.T) {
	_, err := NewEnvelope("a", "b", EnvelopeType("bogus"), NewErrorPayload("x"))
	assert.Error(t, err)
}

func TestEnvelopeValidateRequiresFields(t *testing.T) {
	env := &Envelope{Type: EnvelopeStatus, Content: NewStatusPayload(&StatusUpdate{Phase: "design"})}
	assert.Error(t, env.Validate(), "missing message_id/from/to")
}

func TestEnvelopeCloneIsIndependent(t *testing.T) {
	env, err := NewEnvelope("a", "b", EnvelopeAnswer, NewAnswerPayload(&Answer{Text: []byte(`"ok"`)}))
	require.NoError(t, err)
	env.Metadata["trace_id"] = "abc"

	clone := env.Clone()
	clone.Metadata["trace_id"] = "mutated"
	clone.Content.Data[0] = '!'

	assert.Equal(t, "abc", env.Metadata["trace_id"])
	assert.NotEqual(t, clone.Content.Data[0], env.Content.Data[0])
}
