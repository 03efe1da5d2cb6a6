package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPayloadRoundTrip(t *testing.T) {
	want := &Task{ID: "t1", Description: "implement login", From: "orchestrator", To: "backend_v1", Priority: PriorityMedium}
	p := NewTaskPayload(want)
	got, err := p.ExtractTask()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReviewPayloadRoundTrip(t *testing.T) {
	want := &Review{Approved: true, Score: 9, Feedback: []string{"looks good"}, Iteration: 2}
	p := NewReviewPayload(want)
	got, err := p.ExtractReview()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExtractWrongKindFails(t *testing.T) {
	p := NewTaskPayload(&Task{ID: "t1"})
	_, err := p.ExtractReview()
	assert.Error(t, err)
}

func TestExtractNilPayloadFails(t *testing.T) {
	var p *Payload
	_, err := p.ExtractTask()
	assert.Error(t, err)
}

func TestTaskResponsePayloadRoundTrip(t *testing.T) {
	want := &TaskResponse{TaskID: "t1", Status: TaskCompleted, TokenUsage: TokenUsage{InputTokens: 100, OutputTokens: 40}}
	p := NewTaskResponsePayload(want)
	got, err := p.ExtractTaskResponse()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStatusPayloadClampsNothingButRoundTrips(t *testing.T) {
	want := &StatusUpdate{Phase: "review", CompletionPercent: 42}
	p := NewStatusPayload(want)
	got, err := p.ExtractStatus()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
