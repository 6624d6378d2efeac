// ABOUTME: The narrator loop: DM projection in, tool calls resolved, narration appended, extraction run.
// ABOUTME: A cancelled call returns before any tree mutation, leaving the active leaf untouched.

package referee

import (
	"context"
	"fmt"
	"log"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/extract"
	"github.com/2389-research/arbiter/llm"
)

// NarrationResult reports one narrator run.
type NarrationResult struct {
	Narration  string
	ToolRounds int
	Extraction extract.ExtractionResult
	Usage      llm.Usage
}

// Narrate builds the DM projection for the current leaf, runs the model with
// the rules tool until it produces a text-only reply, appends the narration,
// clears the new-message flags, and runs state extraction over the turn.
func (e *Engine) Narrate(ctx context.Context, gameContext map[string]string) (NarrationResult, error) {
	if e.client == nil {
		return NarrationResult{}, fmt.Errorf("narrator needs an LLM client")
	}

	snap := e.manager.Snapshot()
	if snap.IsEmpty() {
		return NarrationResult{}, engine.ErrNoActiveTurn
	}

	dmContext := engine.DMContextBuilder{}.Build(snap)
	messages := []llm.Message{
		llm.SystemMessage(narratorSystemPrompt),
		llm.UserMessage(dmContext),
	}

	var result NarrationResult
	narration := ""

	for round := 0; ; round++ {
		if round >= e.cfg.MaxToolRounds {
			return NarrationResult{}, fmt.Errorf("narrator exceeded %d tool rounds", e.cfg.MaxToolRounds)
		}

		resp, err := e.client.Complete(ctx, llm.Request{
			Model:       e.cfg.Models.Narrator,
			Provider:    e.cfg.Provider,
			Messages:    messages,
			Tools:       e.tools.Definitions(),
			ToolChoice:  &llm.ToolChoice{Mode: llm.ToolChoiceAuto},
			Temperature: llm.Float64Ptr(e.cfg.NarratorTemperature),
			MaxTokens:   llm.IntPtr(e.cfg.MaxTokens),
		})
		if err != nil {
			return NarrationResult{}, fmt.Errorf("narrator call: %w", err)
		}
		result.Usage = result.Usage.Add(resp.Usage)

		toolCalls := resp.ToolCalls()
		if len(toolCalls) == 0 {
			narration = resp.TextContent()
			break
		}

		result.ToolRounds++
		messages = append(messages, resp.Message)
		for _, tc := range toolCalls {
			messages = append(messages, llm.ToolResultMessage(tc.ID, e.executeTool(tc), false))
		}
	}

	if ctx.Err() != nil {
		return NarrationResult{}, ctx.Err()
	}

	if err := e.manager.AppendMessages([]engine.MessageInput{
		{Content: narration, Speaker: engine.SpeakerDM},
	}); err != nil {
		return NarrationResult{}, fmt.Errorf("append narration: %w", err)
	}
	if err := e.manager.MarkDMSawNewMessages(); err != nil {
		return NarrationResult{}, fmt.Errorf("clear new-message flags: %w", err)
	}

	result.Narration = narration
	result.Extraction = e.ExtractStateChanges(ctx, gameContext)
	return result, nil
}

// executeTool resolves one narrator tool call to a result string. Unknown
// tools and bad arguments come back as readable text, never as errors.
func (e *Engine) executeTool(tc llm.ToolCallData) string {
	tool := e.tools.Get(tc.Name)
	if tool == nil {
		log.Printf("component=referee action=unknown_tool tool=%s", tc.Name)
		return fmt.Sprintf("Unknown tool %q.", tc.Name)
	}

	args, err := tc.ArgumentsMap()
	if err != nil {
		log.Printf("component=referee action=tool_args_invalid tool=%s err=%v", tc.Name, err)
		return fmt.Sprintf("Could not parse arguments for %q: %v.", tc.Name, err)
	}
	return tool.Execute(args)
}
