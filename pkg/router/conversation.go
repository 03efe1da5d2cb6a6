package router

import (
	"context"
	"fmt"

	"agentcore/pkg/llmio"
)

const conversationSystemPrompt = "You are a helpful assistant embedded in a multi-agent build system. " +
	"Answer briefly; if the user wants something built, changed, or deployed, tell them to just ask and you'll start a workflow."

// LLMConversationReplier answers single-turn conversational messages
// through the same LLMCaller seam every agent role uses (spec §4.1
// "routes to single-turn conversation").
type LLMConversationReplier struct {
	llm llmio.LLMCaller
}

// NewLLMConversationReplier builds a ConversationReplier backed by llm.
func NewLLMConversationReplier(llm llmio.LLMCaller) *LLMConversationReplier {
	return &LLMConversationReplier{llm: llm}
}

func (c *LLMConversationReplier) Reply(ctx context.Context, userID, message string) (string, error) {
	resp, err := c.llm.Complete(ctx, llmio.CompletionRequest{
		Messages: []llmio.Message{
			llmio.SystemMessage(conversationSystemPrompt),
			llmio.UserMessage(message),
		},
	})
	if err != nil {
		return "", fmt.Errorf("router: conversation completion: %w", err)
	}
	return resp.Content, nil
}

var _ ConversationReplier = (*LLMConversationReplier)(nil)
