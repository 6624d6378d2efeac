// ABOUTME: The play console: an input line, a scrolling session log, and an active-turn status bar.
// ABOUTME: Utterances open or continue turns; slash commands handle reactions, turn ends, and rules lookups.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/referee"
)

const helpText = `Type an utterance to act. Commands:
  /react <speaker>: <content>   open a reaction sub-turn
  /end                          end the active turn
  /rules <query>                look up a rule
  /help                         show this help
  ctrl+c                        quit`

// AppModel is the top-level Bubble Tea model for the play console.
type AppModel struct {
	engine *referee.Engine
	ctx    context.Context

	input    textinput.Model
	log      viewport.Model
	lines    []string
	busy     bool
	ready    bool
	width    int
	height   int
	quitting bool
}

// NewAppModel creates the console model around a session engine.
func NewAppModel(ctx context.Context, eng *referee.Engine) AppModel {
	ti := textinput.New()
	ti.Placeholder = "What do you do?"
	ti.Focus()
	ti.CharLimit = 500

	return AppModel{
		engine: eng,
		ctx:    ctx,
		input:  ti,
		lines:  []string{SystemStyle.Render(helpText)},
	}
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := msg.Height - 5
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.log = viewport.New(msg.Width-2, logHeight)
			m.ready = true
		} else {
			m.log.Width = msg.Width - 2
			m.log.Height = logHeight
		}
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			return m.handleLine(line)
		}

	case TurnStartedMsg:
		if msg.Err != nil {
			return m.fail(msg.Err), nil
		}
		m.appendLine(SystemStyle.Render(fmt.Sprintf("turn %s opened", strings.Join(msg.TurnIDs, ", "))))
		return m, narrateCmd(m.ctx, m.engine)

	case NarrationMsg:
		m.busy = false
		if msg.Err != nil {
			return m.fail(msg.Err), nil
		}
		m.appendLine(DMStyle.Render("DM: ") + msg.Result.Narration)
		for _, note := range msg.Result.Extraction.Notes {
			m.appendLine(NoteStyle.Render("  · " + note))
		}
		for _, cmd := range msg.Result.Extraction.Commands {
			m.appendLine(NoteStyle.Render(fmt.Sprintf("  » %T for %s", cmd, cmd.Character())))
		}
		return m, nil

	case TurnEndedMsg:
		m.busy = false
		if msg.Err != nil {
			return m.fail(msg.Err), nil
		}
		switch {
		case msg.Result.AdvancedToSibling:
			m.appendLine(SystemStyle.Render(fmt.Sprintf("turn %s closed; next queued sibling is active", msg.Result.TurnID)))
		case msg.Result.EmbeddedInParent:
			m.appendLine(SystemStyle.Render(fmt.Sprintf("turn %s folded into its parent", msg.Result.TurnID)))
		default:
			m.appendLine(SystemStyle.Render(fmt.Sprintf("turn %s closed; session log is empty", msg.Result.TurnID)))
		}
		return m, nil

	case RulesAnswerMsg:
		m.busy = false
		m.appendLine(RulesStyle.Render("rules: "+msg.Query) + "\n" + msg.Answer)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleLine dispatches one submitted console line.
func (m AppModel) handleLine(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == "/help":
		m.appendLine(SystemStyle.Render(helpText))
		return m, nil

	case line == "/end":
		m.busy = true
		return m, endTurnCmd(m.ctx, m.engine)

	case strings.HasPrefix(line, "/rules "):
		m.busy = true
		query := strings.TrimSpace(strings.TrimPrefix(line, "/rules "))
		return m, rulesCmd(m.engine, query)

	case strings.HasPrefix(line, "/react "):
		rest := strings.TrimPrefix(line, "/react ")
		speaker, content, ok := strings.Cut(rest, ":")
		if !ok {
			m.appendLine(ErrorStyle.Render("usage: /react <speaker>: <content>"))
			return m, nil
		}
		decl := engine.ActionDeclaration{
			Speaker: engine.Speaker(strings.TrimSpace(speaker)),
			Content: strings.TrimSpace(content),
		}
		m.appendLine(styleForSpeaker(decl.Speaker).Render(string(decl.Speaker)+": ") + decl.Content)
		m.busy = true
		return m, startTurnCmd(m.ctx, m.engine, decl)

	default:
		m.appendLine(PlayerStyle.Render("you: ") + line)
		m.busy = true
		if m.engine.CurrentTurn() == nil {
			decl := engine.ActionDeclaration{Speaker: engine.SpeakerPlayer, Content: line}
			return m, startTurnCmd(m.ctx, m.engine, decl)
		}
		if err := m.engine.AppendMessages([]engine.MessageInput{
			{Content: line, Speaker: engine.SpeakerPlayer},
		}); err != nil {
			return m.fail(err), nil
		}
		return m, narrateCmd(m.ctx, m.engine)
	}
}

func (m AppModel) fail(err error) AppModel {
	m.busy = false
	m.appendLine(ErrorStyle.Render("error: " + err.Error()))
	return m
}

func (m *AppModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshLog()
}

func (m *AppModel) refreshLog() {
	if !m.ready {
		return
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

// statusLine summarizes the active turn for the status bar.
func (m AppModel) statusLine() string {
	turn := m.engine.CurrentTurn()
	if turn == nil {
		return "no active turn"
	}
	status := fmt.Sprintf("turn %s (level %d)", turn.TurnID, turn.TurnLevel)
	if turn.ActiveCharacter != "" {
		status += " · " + turn.ActiveCharacter
	}
	if n := len(turn.RulesCache); n > 0 {
		status += fmt.Sprintf(" · %d cached rules", n)
	}
	if m.busy {
		status += " · thinking..."
	}
	return status
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.quitting {
		return "Session over.\n"
	}
	if !m.ready {
		return "Initializing..."
	}

	title := TitleStyle.Render("arbiter")
	logView := BorderStyle.Render(m.log.View())
	status := StatusBarStyle.Width(m.width).Render(m.statusLine())

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		logView,
		m.input.View(),
		status,
	)
}
