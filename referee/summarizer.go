// ABOUTME: LLM-backed structured summarizer producing the condensate for closing sub-turns.
// ABOUTME: Rejects replies without the expected turn fragment so the manager can substitute its fallback.

package referee

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/arbiter/llm"
)

// LLMSummarizer condenses a closing sub-turn's XML log into a single
// structured fragment. It implements engine.Summarizer.
type LLMSummarizer struct {
	Client      *llm.Client
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Condense sends the turn log to the model and validates the reply shape.
// Any error propagates to the manager, which substitutes the fallback
// condensate, so a bad summarizer never fails end_turn.
func (s *LLMSummarizer) Condense(ctx context.Context, turnXML string) (string, error) {
	maxTokens := s.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	resp, err := s.Client.Complete(ctx, llm.Request{
		Model:    s.Model,
		Provider: s.Provider,
		Messages: []llm.Message{
			llm.SystemMessage(summarizerSystemPrompt),
			llm.UserMessage(turnXML),
		},
		Temperature: llm.Float64Ptr(s.Temperature),
		MaxTokens:   llm.IntPtr(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: %w", err)
	}

	condensate := strings.TrimSpace(resp.TextContent())
	if !strings.HasPrefix(condensate, "<turn ") || !strings.HasSuffix(condensate, "</turn>") {
		return "", fmt.Errorf("summarizer: reply is not a turn fragment: %.80q", condensate)
	}
	return condensate, nil
}
