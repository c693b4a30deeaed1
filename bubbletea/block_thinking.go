package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*ThinkingBlock)(nil)

// ThinkingBlock renders the assistant's reasoning behind a collapsible
// header. It holds the whole reasoning text; each snapshot replaces it.
type ThinkingBlock struct {
	text      string
	active    bool
	collapsed bool
	styles    Styles
}

// NewThinkingBlock creates a ThinkingBlock that starts collapsed.
func NewThinkingBlock(styles Styles) *ThinkingBlock {
	return &ThinkingBlock{collapsed: true, styles: styles}
}

// SetText replaces the reasoning text. active marks an open reasoning
// bracket.
func (b *ThinkingBlock) SetText(text string, active bool) {
	b.text = text
	b.active = active
}

func (b *ThinkingBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ThinkingBlock) View(width int) string {
	wrap := lipgloss.NewStyle().Width(width)

	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	label := " Thought"
	if b.active {
		label = " Thinking…"
	}
	header := b.styles.Thinking.Render(wrap.Render(indicator + label))
	if b.collapsed || b.text == "" {
		return header
	}
	return header + "\n" + b.styles.Thinking.Render(wrap.Render(b.text))
}
