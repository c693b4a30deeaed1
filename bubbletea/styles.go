package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	UserMsg  lipgloss.Style
	Thinking lipgloss.Style
	ToolCall lipgloss.Style
	Error    lipgloss.Style
	Stopped  lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t relay.Theme) Styles {
	return Styles{
		UserMsg:  lipgloss.NewStyle().Foreground(ansiColor(t.User)).Bold(true),
		Thinking: lipgloss.NewStyle().Foreground(ansiColor(t.Reasoning)).Faint(true),
		ToolCall: lipgloss.NewStyle().Foreground(ansiColor(t.Tool)),
		Error:    lipgloss.NewStyle().Foreground(ansiColor(t.StateColor(relay.StateError))),
		Stopped:  lipgloss.NewStyle().Foreground(ansiColor(t.StateColor(relay.StateAborted))),
		Muted:    lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:   lipgloss.NewStyle().Foreground(ansiColor(t.Heading)).Bold(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
