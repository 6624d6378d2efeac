// ABOUTME: Tests for console line handling and status rendering without a running terminal.
// ABOUTME: The engine is fake-backed so commands resolve synchronously.
package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/extract"
	"github.com/2389-research/arbiter/referee"
)

type idleDetector struct{}

func (idleDetector) DetectEvents(ctx context.Context, narrative string, gameContext map[string]string) (extract.EventDetectionResult, error) {
	return extract.EventDetectionResult{}, nil
}

type idleCombat struct{}

func (idleCombat) ExtractCombat(ctx context.Context, narrative string, gameContext map[string]string) (extract.CombatResult, error) {
	return extract.CombatResult{}, nil
}

type idleResource struct{}

func (idleResource) ExtractResources(ctx context.Context, narrative string, gameContext map[string]string) (extract.ResourceResult, error) {
	return extract.ResourceResult{}, nil
}

type idleEffect struct{}

func (idleEffect) ExtractEffects(ctx context.Context, effectContext string) (extract.EffectResult, error) {
	return extract.EffectResult{}, nil
}

func testEngine(t *testing.T) *referee.Engine {
	t.Helper()
	orch := extract.NewStateExtractionOrchestrator(idleDetector{}, idleCombat{}, idleResource{}, idleEffect{})
	eng, err := referee.NewEngine(referee.DefaultConfig(), nil, nil,
		referee.WithOrchestrator(orch),
		referee.WithSummarizer(engine.SummarizerFunc(func(ctx context.Context, turnXML string) (string, error) {
			return `<turn id="1.1" level="1"><action>a</action><resolution>r</resolution></turn>`, nil
		})),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func TestStatusLineWithoutTurn(t *testing.T) {
	m := NewAppModel(context.Background(), testEngine(t))
	if got := m.statusLine(); got != "no active turn" {
		t.Errorf("statusLine = %q", got)
	}
}

func TestStatusLineWithActiveTurn(t *testing.T) {
	eng := testEngine(t)
	if _, err := eng.StartAndQueueTurns([]engine.ActionDeclaration{
		{Speaker: engine.SpeakerPlayer, Content: "I attack", ActiveCharacter: "elara"},
	}); err != nil {
		t.Fatalf("StartAndQueueTurns: %v", err)
	}

	m := NewAppModel(context.Background(), eng)
	status := m.statusLine()
	if !strings.Contains(status, "turn 1 (level 0)") || !strings.Contains(status, "elara") {
		t.Errorf("statusLine = %q", status)
	}
}

func TestReactCommandRequiresColonSyntax(t *testing.T) {
	m := NewAppModel(context.Background(), testEngine(t))
	updated, cmd := m.handleLine("/react shield without colon")
	if cmd != nil {
		t.Error("malformed /react should not produce a command")
	}
	am := updated.(AppModel)
	if !strings.Contains(am.lines[len(am.lines)-1], "usage: /react") {
		t.Errorf("last line = %q", am.lines[len(am.lines)-1])
	}
}

func TestUtteranceWithoutTurnStartsOne(t *testing.T) {
	m := NewAppModel(context.Background(), testEngine(t))
	updated, cmd := m.handleLine("I kick the door open")
	if cmd == nil {
		t.Fatal("expected a start-turn command")
	}
	am := updated.(AppModel)
	if !am.busy {
		t.Error("model should be busy while the turn opens")
	}

	msg := cmd()
	started, ok := msg.(TurnStartedMsg)
	if !ok {
		t.Fatalf("msg = %T, want TurnStartedMsg", msg)
	}
	if started.Err != nil || len(started.TurnIDs) != 1 || started.TurnIDs[0] != "1" {
		t.Errorf("TurnStartedMsg = %+v", started)
	}
}

func TestEndCommandClosesTurn(t *testing.T) {
	eng := testEngine(t)
	if _, err := eng.StartAndQueueTurns([]engine.ActionDeclaration{
		{Speaker: engine.SpeakerPlayer, Content: "I attack"},
	}); err != nil {
		t.Fatalf("StartAndQueueTurns: %v", err)
	}

	m := NewAppModel(context.Background(), eng)
	_, cmd := m.handleLine("/end")
	if cmd == nil {
		t.Fatal("expected an end-turn command")
	}
	msg := cmd()
	ended, ok := msg.(TurnEndedMsg)
	if !ok {
		t.Fatalf("msg = %T, want TurnEndedMsg", msg)
	}
	if ended.Err != nil || ended.Result.TurnID != "1" {
		t.Errorf("TurnEndedMsg = %+v", ended)
	}
	if eng.CurrentTurn() != nil {
		t.Error("tree should be empty after closing the root")
	}
}

func TestQuitKey(t *testing.T) {
	m := NewAppModel(context.Background(), testEngine(t))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !updated.(AppModel).quitting {
		t.Error("model should be quitting")
	}
}
