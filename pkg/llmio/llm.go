// Package llmio defines the seam between this module's orchestration logic
// and a concrete LLM client. Generalized from the teacher's
// pkg/agent/llm.LLMClient interface: a narrow, synchronous completion call
// with no knowledge of which provider backs it. A concrete client
// satisfying github.com/anthropics/anthropic-sdk-go's or
// github.com/openai/openai-go's request/response shapes can implement
// LLMCaller without this module importing either SDK; the spec places the
// concrete LLM client out of scope (spec.md §1), mirroring the teacher's own
// layering where pkg/agent/llm defines the seam and
// pkg/agent/internal/llmimpl holds the concrete client.
package llmio

import "context"

// MessageRole mirrors the teacher's CompletionRole.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of an LLM completion request.
type Message struct {
	Role    MessageRole
	Content string
}

// CompletionRequest is a single synchronous completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the result of a CompletionRequest, including the
// raw token counts needed to feed pkg/registry.TokenTracker.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// LLMCaller is the seam every agent role (designer, backend, frontend,
// code-reviewer, qa, devops) and the in-workflow/webapp-intent classifiers
// call through.
type LLMCaller interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// SystemMessage builds a Message with RoleSystem, mirroring the teacher's
// llm.NewSystemMessage helper.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a Message with RoleUser.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }
