package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// MessageBlock is a renderable element of the transcript. View takes the
// width so the root model owns layout and blocks render in isolation.
type MessageBlock interface {
	Update(tea.Msg) (MessageBlock, tea.Cmd)
	View(width int) string
}

// ToggleMsg tells a collapsible block to flip its collapsed state.
type ToggleMsg struct{}
