package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/llmio"
)

func TestCompleteReturnsDefaultWhenQueueEmpty(t *testing.T) {
	c := New(llmio.CompletionResponse{Content: "default reply"})
	resp, err := c.Complete(context.Background(), llmio.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "default reply", resp.Content)
}

func TestCompleteDrainsEnqueuedResponsesInOrder(t *testing.T) {
	c := New(llmio.CompletionResponse{Content: "default"})
	c.Enqueue(llmio.CompletionResponse{Content: "first"})
	c.Enqueue(llmio.CompletionResponse{Content: "second"})

	r1, _ := c.Complete(context.Background(), llmio.CompletionRequest{})
	r2, _ := c.Complete(context.Background(), llmio.CompletionRequest{})
	r3, _ := c.Complete(context.Background(), llmio.CompletionRequest{})

	assert.Equal(t, "first", r1.Content)
	assert.Equal(t, "second", r2.Content)
	assert.Equal(t, "default", r3.Content)
}

func TestCompleteRecordsRequests(t *testing.T) {
	c := New(llmio.CompletionResponse{})
	req := llmio.CompletionRequest{Messages: []llmio.Message{llmio.UserMessage("hi")}}
	_, _ = c.Complete(context.Background(), req)
	require.Len(t, c.Requests, 1)
	assert.Equal(t, "hi", c.Requests[0].Messages[0].Content)
}
