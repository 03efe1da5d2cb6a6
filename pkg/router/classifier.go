package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agentcore/pkg/llmio"
	"agentcore/pkg/resilience"
)

// Class is the in-workflow classifier's output (spec §4.1.1).
type Class string

const (
	ClassRefinement   Class = "refinement"
	ClassStatusQuery  Class = "status_query"
	ClassCancellation Class = "cancellation"
	ClassNewTask      Class = "new_task"
	ClassConversation Class = "conversation"
)

// Intent is the webapp-intent classifier's output (spec §4.1.2).
type Intent string

const (
	IntentWorkflow      Intent = "workflow"
	IntentConversation  Intent = "conversation"
)

const classifierSystemPrompt = `You classify a user message for a multi-agent orchestration router. ` +
	`Respond with a single JSON object and nothing else.`

// Classifier decides the in-workflow routing class for a message against an
// active workflow, caching results by the stable key spec §4.1.1 defines
// (normalized_message, workflow_summary, phase), with single-flight
// collapse of concurrent identical lookups (pkg/resilience.ClassifierCache).
type Classifier struct {
	llm   llmio.LLMCaller
	cache *resilience.ClassifierCache
}

// NewClassifier builds a Classifier backed by llm and cached in cache.
func NewClassifier(llm llmio.LLMCaller, cache *resilience.ClassifierCache) *Classifier {
	return &Classifier{llm: llm, cache: cache}
}

// Classify returns the class of message given the active workflow's summary
// and current phase. On any failure (timeout, unparseable output) it
// degrades to ClassConversation per spec §4.1.1's fallback rule — the
// router never silently starts a new workflow while one is active.
func (c *Classifier) Classify(ctx context.Context, message, workflowSummary, phase string) (Class, error) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	key := resilience.ClassifierCacheKey(normalized, workflowSummary, phase)

	v, err, _ := c.cache.GetOrCompute(key, func() (any, error) {
		prompt := fmt.Sprintf(
			"Active workflow summary: %s\nCurrent phase: %s\nMessage: %s\n"+
				`Classify as one of: refinement, status_query, cancellation, new_task, conversation. `+
				`Respond as {"class":"..."}.`,
			workflowSummary, phase, message)
		resp, err := c.llm.Complete(ctx, llmio.CompletionRequest{
			Messages: []llmio.Message{
				llmio.SystemMessage(classifierSystemPrompt),
				llmio.UserMessage(prompt),
			},
		})
		if err != nil {
			return nil, err
		}
		var out struct {
			Class string `json:"class"`
		}
		if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
			return nil, fmt.Errorf("router: unparseable classifier output: %w", err)
		}
		return Class(out.Class), nil
	})
	if err != nil {
		return ClassConversation, err
	}
	class, ok := v.(Class)
	if !ok || !validClass(class) {
		return ClassConversation, fmt.Errorf("router: invalid classifier class %q", v)
	}
	return class, nil
}

func validClass(c Class) bool {
	switch c {
	case ClassRefinement, ClassStatusQuery, ClassCancellation, ClassNewTask, ClassConversation:
		return true
	}
	return false
}

// WebappIntentClassifier decides whether a first message starts a workflow
// or is a conversational question (spec §4.1.2). Same caching discipline as
// Classifier, keyed on an empty workflow_summary/phase tuple.
type WebappIntentClassifier struct {
	llm   llmio.LLMCaller
	cache *resilience.ClassifierCache
}

// NewWebappIntentClassifier builds a WebappIntentClassifier backed by llm
// and cached in cache.
func NewWebappIntentClassifier(llm llmio.LLMCaller, cache *resilience.ClassifierCache) *WebappIntentClassifier {
	return &WebappIntentClassifier{llm: llm, cache: cache}
}

// Classify decides message's intent. Degrades to IntentConversation on any
// classifier failure, the safe default for a first message.
func (c *WebappIntentClassifier) Classify(ctx context.Context, message string) (Intent, error) {
	key := resilience.ClassifierCacheKey(strings.ToLower(strings.TrimSpace(message)), "", "")

	v, err, _ := c.cache.GetOrCompute(key, func() (any, error) {
		prompt := fmt.Sprintf(
			"Message: %s\n"+
				`Decide whether this is a request to build/change/deploy software (workflow) `+
				`or a conversational question (conversation). Respond as {"intent":"workflow"} or {"intent":"conversation"}.`,
			message)
		resp, err := c.llm.Complete(ctx, llmio.CompletionRequest{
			Messages: []llmio.Message{
				llmio.SystemMessage(classifierSystemPrompt),
				llmio.UserMessage(prompt),
			},
		})
		if err != nil {
			return nil, err
		}
		var out struct {
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
			return nil, fmt.Errorf("router: unparseable intent output: %w", err)
		}
		return Intent(out.Intent), nil
	})
	if err != nil {
		return IntentConversation, err
	}
	intent, ok := v.(Intent)
	if !ok || (intent != IntentWorkflow && intent != IntentConversation) {
		return IntentConversation, fmt.Errorf("router: invalid intent %q", v)
	}
	return intent, nil
}

// classifyTimeout bounds each classifier call so a slow LLM degrades to the
// safe fallback instead of stalling the router (spec §4.1.1 "timeout").
const classifyTimeout = 5 * time.Second
