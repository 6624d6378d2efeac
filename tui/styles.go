// ABOUTME: Lipgloss style constants for the play console: log speakers, status bar, and borders.
// ABOUTME: Provides styleForSpeaker to map speakers to their display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/arbiter/engine"
)

var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	PlayerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	DMStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	SystemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	NoteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RulesStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// styleForSpeaker returns the display style for a message speaker.
func styleForSpeaker(speaker engine.Speaker) lipgloss.Style {
	switch speaker {
	case engine.SpeakerPlayer:
		return PlayerStyle
	case engine.SpeakerDM:
		return DMStyle
	case engine.SpeakerSystem:
		return SystemStyle
	default:
		return PlayerStyle
	}
}
