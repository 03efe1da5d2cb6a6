package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/llmio"
	fakellm "agentcore/pkg/llmio/fake"
	"agentcore/pkg/resilience"
)

var errSimulatedCompletion = errors.New("router: simulated completion failure")

func TestClassifierCachesByStableKey(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	caller.Enqueue(llmio.CompletionResponse{Content: `{"class":"refinement"}`})
	cache := resilience.NewClassifierCache(8, time.Minute)
	c := NewClassifier(caller, cache)

	class, err := c.Classify(context.Background(), "make it blue", "summary", "design")
	require.NoError(t, err)
	assert.Equal(t, ClassRefinement, class)

	// Second identical call must hit the cache, not consume the (now
	// exhausted) queued response or fall back to Default.
	class2, err := c.Classify(context.Background(), "make it blue", "summary", "design")
	require.NoError(t, err)
	assert.Equal(t, ClassRefinement, class2)
	assert.Len(t, caller.Requests, 1)
}

func TestClassifierDegradesOnCompletionError(t *testing.T) {
	caller := &erroringCaller{}
	cache := resilience.NewClassifierCache(8, time.Minute)
	c := NewClassifier(caller, cache)

	class, err := c.Classify(context.Background(), "whatever", "summary", "design")
	assert.Error(t, err)
	assert.Equal(t, ClassConversation, class)
}

func TestWebappIntentClassifierDegradesOnUnparseableOutput(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{Content: "nonsense"})
	cache := resilience.NewClassifierCache(8, time.Minute)
	c := NewWebappIntentClassifier(caller, cache)

	intent, err := c.Classify(context.Background(), "build me a thing")
	assert.Error(t, err)
	assert.Equal(t, IntentConversation, intent)
}

type erroringCaller struct{}

func (erroringCaller) Complete(ctx context.Context, req llmio.CompletionRequest) (llmio.CompletionResponse, error) {
	return llmio.CompletionResponse{}, errSimulatedCompletion
}
