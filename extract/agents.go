// ABOUTME: Agent interfaces consumed by the orchestrator plus their LLM-backed implementations.
// ABOUTME: Each LLM agent sends one prompt, parses a JSON envelope, and returns a typed result.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389-research/arbiter/llm"
)

// EventDetector classifies narration into event classes.
type EventDetector interface {
	DetectEvents(ctx context.Context, narrative string, gameContext map[string]string) (EventDetectionResult, error)
}

// CombatExtractor extracts HP, conditions, death saves, and combat stats.
type CombatExtractor interface {
	ExtractCombat(ctx context.Context, narrative string, gameContext map[string]string) (CombatResult, error)
}

// ResourceExtractor extracts slots, inventory, hit dice, and new characters.
type ResourceExtractor interface {
	ExtractResources(ctx context.Context, narrative string, gameContext map[string]string) (ResourceResult, error)
}

// EffectExtractor extracts ongoing effects from the effect agent context.
type EffectExtractor interface {
	ExtractEffects(ctx context.Context, effectContext string) (EffectResult, error)
}

// AgentConfig configures the LLM-backed agents.
type AgentConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

func (c AgentConfig) request(system, user string) llm.Request {
	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return llm.Request{
		Model:    c.Model,
		Provider: c.Provider,
		Messages: []llm.Message{
			llm.SystemMessage(system),
			llm.UserMessage(user),
		},
		Temperature: llm.Float64Ptr(c.Temperature),
		MaxTokens:   llm.IntPtr(maxTokens),
	}
}

// formatGameContext renders optional metadata lines appended to a prompt.
func formatGameContext(gameContext map[string]string) string {
	if len(gameContext) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nGame context:\n")
	for _, key := range []string{"combat_round", "location", "time_of_day"} {
		if v, ok := gameContext[key]; ok {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	return b.String()
}

// parseEnvelope strips optional markdown fences and unmarshals the agent's
// JSON reply into out.
func parseEnvelope(text string, out any) error {
	cleaned := stripCodeFences(text)
	if cleaned == "" {
		return fmt.Errorf("empty agent reply")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("malformed agent envelope: %w", err)
	}
	return nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// LLMEventDetector is the cheap classifier that gates specialist dispatch.
type LLMEventDetector struct {
	Client *llm.Client
	Config AgentConfig
}

func (d *LLMEventDetector) DetectEvents(ctx context.Context, narrative string, gameContext map[string]string) (EventDetectionResult, error) {
	resp, err := d.Client.Complete(ctx, d.Config.request(detectorSystemPrompt, narrative+formatGameContext(gameContext)))
	if err != nil {
		return EventDetectionResult{}, fmt.Errorf("event detector: %w", err)
	}

	var result EventDetectionResult
	if err := parseEnvelope(resp.TextContent(), &result); err != nil {
		return EventDetectionResult{}, fmt.Errorf("event detector: %w", err)
	}

	// Drop classes outside the known set rather than failing the run.
	var valid []EventClass
	for _, ev := range result.DetectedEvents {
		for _, known := range KnownEventClasses {
			if ev == known {
				valid = append(valid, ev)
				break
			}
		}
	}
	result.DetectedEvents = valid
	return result, nil
}

// LLMCombatExtractor extracts combat state changes.
type LLMCombatExtractor struct {
	Client *llm.Client
	Config AgentConfig
}

func (e *LLMCombatExtractor) ExtractCombat(ctx context.Context, narrative string, gameContext map[string]string) (CombatResult, error) {
	resp, err := e.Client.Complete(ctx, e.Config.request(combatSystemPrompt, narrative+formatGameContext(gameContext)))
	if err != nil {
		return CombatResult{}, fmt.Errorf("combat extractor: %w", err)
	}

	var result CombatResult
	if err := parseEnvelope(resp.TextContent(), &result); err != nil {
		return CombatResult{}, fmt.Errorf("combat extractor: %w", err)
	}
	return result, nil
}

// LLMResourceExtractor extracts resource usage and new characters.
type LLMResourceExtractor struct {
	Client *llm.Client
	Config AgentConfig
}

func (e *LLMResourceExtractor) ExtractResources(ctx context.Context, narrative string, gameContext map[string]string) (ResourceResult, error) {
	resp, err := e.Client.Complete(ctx, e.Config.request(resourceSystemPrompt, narrative+formatGameContext(gameContext)))
	if err != nil {
		return ResourceResult{}, fmt.Errorf("resource extractor: %w", err)
	}

	var result ResourceResult
	if err := parseEnvelope(resp.TextContent(), &result); err != nil {
		return ResourceResult{}, fmt.Errorf("resource extractor: %w", err)
	}
	return result, nil
}

// LLMEffectExtractor extracts ongoing effects. Its input is the three-section
// effect agent context rather than the bare narrative.
type LLMEffectExtractor struct {
	Client *llm.Client
	Config AgentConfig
}

func (e *LLMEffectExtractor) ExtractEffects(ctx context.Context, effectContext string) (EffectResult, error) {
	resp, err := e.Client.Complete(ctx, e.Config.request(effectSystemPrompt, effectContext))
	if err != nil {
		return EffectResult{}, fmt.Errorf("effect extractor: %w", err)
	}

	var result EffectResult
	if err := parseEnvelope(resp.TextContent(), &result); err != nil {
		return EffectResult{}, fmt.Errorf("effect extractor: %w", err)
	}
	return result, nil
}
