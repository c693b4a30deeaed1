package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*NoticeBlock)(nil)

// NoticeBlock renders a one-line marker after a response that did not
// finish normally.
type NoticeBlock struct {
	text  string
	style lipgloss.Style
}

// NewErrorBlock creates a NoticeBlock for a failed response.
func NewErrorBlock(message string, styles Styles) *NoticeBlock {
	return &NoticeBlock{text: "Error: " + message, style: styles.Error}
}

// NewAbortedBlock creates a NoticeBlock for a cancelled response.
func NewAbortedBlock(styles Styles) *NoticeBlock {
	return &NoticeBlock{text: "⊘ Stopped", style: styles.Stopped}
}

func (b *NoticeBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *NoticeBlock) View(width int) string {
	return lipgloss.NewStyle().Width(width).Render(b.style.Render(b.text))
}
