package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*UserMessageBlock)(nil)

// UserMessageBlock renders a user message with a "> " prefix. Attached
// images are shown as a muted marker line.
type UserMessageBlock struct {
	text   string
	images int
	styles Styles
}

// NewUserMessageBlock creates a UserMessageBlock.
func NewUserMessageBlock(text string, images int, styles Styles) *UserMessageBlock {
	return &UserMessageBlock{text: text, images: images, styles: styles}
}

func (b *UserMessageBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *UserMessageBlock) View(width int) string {
	content := b.styles.UserMsg.Render("> ") + b.text
	if b.images > 0 {
		content += "\n" + b.styles.Muted.Render("[image attached]")
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}
