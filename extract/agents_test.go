// ABOUTME: Tests for the LLM-backed agents' envelope parsing and validation.
// ABOUTME: Uses a scripted ProviderAdapter so no network is touched.

package extract

import (
	"context"
	"testing"

	"github.com/2389-research/arbiter/llm"
)

// scriptedAdapter returns a fixed text reply for every completion.
type scriptedAdapter struct {
	reply string
}

func (s *scriptedAdapter) Name() string { return "scripted" }

func (s *scriptedAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{
		ID:           "r1",
		Model:        req.Model,
		Provider:     "scripted",
		Message:      llm.AssistantMessage(s.reply),
		FinishReason: llm.FinishReason{Reason: llm.FinishStop},
	}, nil
}

func (s *scriptedAdapter) Close() error { return nil }

func clientWith(reply string) *llm.Client {
	return llm.NewClient(llm.WithProvider("scripted", &scriptedAdapter{reply: reply}))
}

func TestDetectorParsesEnvelope(t *testing.T) {
	d := &LLMEventDetector{
		Client: clientWith(`{"detected_events": ["HP_CHANGE", "BOGUS_CLASS"], "confidence": 0.85, "reasoning": "damage dealt"}`),
		Config: AgentConfig{Model: "m"},
	}

	result, err := d.DetectEvents(context.Background(), "<turn_log>8 damage</turn_log>", nil)
	if err != nil {
		t.Fatalf("DetectEvents: %v", err)
	}
	if len(result.DetectedEvents) != 1 || result.DetectedEvents[0] != EventHPChange {
		t.Errorf("detected = %v, want unknown classes dropped", result.DetectedEvents)
	}
	if result.Confidence != 0.85 {
		t.Errorf("confidence = %v", result.Confidence)
	}
}

func TestDetectorRejectsMalformedReply(t *testing.T) {
	d := &LLMEventDetector{
		Client: clientWith("I think there was some damage here."),
		Config: AgentConfig{Model: "m"},
	}

	if _, err := d.DetectEvents(context.Background(), "<turn_log>x</turn_log>", nil); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestCombatExtractorParsesFencedReply(t *testing.T) {
	reply := "```json\n{\"character_updates\": [{\"character_id\": \"orc\", \"hp_delta\": -8, \"damage_type\": \"slashing\"}]}\n```"
	e := &LLMCombatExtractor{Client: clientWith(reply), Config: AgentConfig{Model: "m"}}

	result, err := e.ExtractCombat(context.Background(), "<turn_log>8 slashing damage</turn_log>", nil)
	if err != nil {
		t.Fatalf("ExtractCombat: %v", err)
	}
	if len(result.CharacterUpdates) != 1 {
		t.Fatalf("updates = %+v", result.CharacterUpdates)
	}
	u := result.CharacterUpdates[0]
	if u.CharacterID != "orc" || u.HPDelta == nil || *u.HPDelta != -8 || u.DamageType != "slashing" {
		t.Errorf("update = %+v", u)
	}
}

func TestResourceExtractorParsesNewCharacters(t *testing.T) {
	reply := `{"character_updates": [], "new_characters": [{"identifier": "goblin_chief", "kind": "monster", "basic_stats": {"hp": 21}}]}`
	e := &LLMResourceExtractor{Client: clientWith(reply), Config: AgentConfig{Model: "m"}}

	result, err := e.ExtractResources(context.Background(), "<turn_log>a goblin chief appears</turn_log>", nil)
	if err != nil {
		t.Fatalf("ExtractResources: %v", err)
	}
	if len(result.NewCharacters) != 1 || result.NewCharacters[0].Identifier != "goblin_chief" {
		t.Errorf("new characters = %+v", result.NewCharacters)
	}
}

func TestEffectExtractorParsesEnvelope(t *testing.T) {
	reply := `{"character_updates": [{"character_id": "elara", "add_effects": [{"effect_name": "haste", "duration": "1 minute"}]}]}`
	e := &LLMEffectExtractor{Client: clientWith(reply), Config: AgentConfig{Model: "m"}}

	result, err := e.ExtractEffects(context.Background(), "=== NARRATIVE ===\nhaste takes hold")
	if err != nil {
		t.Fatalf("ExtractEffects: %v", err)
	}
	if len(result.CharacterUpdates) != 1 {
		t.Fatalf("updates = %+v", result.CharacterUpdates)
	}
	add := result.CharacterUpdates[0].AddEffects
	if len(add) != 1 || add[0].EffectName != "haste" || add[0].Duration != "1 minute" {
		t.Errorf("add effects = %+v", add)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tc := range tests {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
