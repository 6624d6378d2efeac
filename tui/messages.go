// ABOUTME: Bubble Tea message types and commands bridging engine calls into the TUI loop.
// ABOUTME: Each engine operation runs in a tea.Cmd so the interface stays responsive during LLM calls.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/referee"
)

// NarrationMsg carries a finished narrator run.
type NarrationMsg struct {
	Result referee.NarrationResult
	Err    error
}

// TurnStartedMsg reports new turn ids after a declaration batch.
type TurnStartedMsg struct {
	TurnIDs []string
	Err     error
}

// TurnEndedMsg carries the result of closing the active leaf.
type TurnEndedMsg struct {
	Result engine.EndResult
	Err    error
}

// RulesAnswerMsg carries a rules tool reply requested from the console.
type RulesAnswerMsg struct {
	Query  string
	Answer string
}

// narrateCmd runs the narrator and reports the result.
func narrateCmd(ctx context.Context, eng *referee.Engine) tea.Cmd {
	return func() tea.Msg {
		result, err := eng.Narrate(ctx, nil)
		return NarrationMsg{Result: result, Err: err}
	}
}

// startTurnCmd opens a turn for one declaration and then narrates.
func startTurnCmd(ctx context.Context, eng *referee.Engine, decl engine.ActionDeclaration) tea.Cmd {
	return func() tea.Msg {
		ids, err := eng.StartAndQueueTurns([]engine.ActionDeclaration{decl})
		return TurnStartedMsg{TurnIDs: ids, Err: err}
	}
}

// endTurnCmd closes the active leaf.
func endTurnCmd(ctx context.Context, eng *referee.Engine) tea.Cmd {
	return func() tea.Msg {
		result, err := eng.EndTurn(ctx)
		return TurnEndedMsg{Result: result, Err: err}
	}
}

// rulesCmd answers a rules query through the engine's tool path.
func rulesCmd(eng *referee.Engine, query string) tea.Cmd {
	return func() tea.Msg {
		return RulesAnswerMsg{Query: query, Answer: eng.QueryRulesDatabase(query, 3)}
	}
}
