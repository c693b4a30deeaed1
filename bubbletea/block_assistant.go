package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay/markdown"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders the assistant's reply as markdown.
//
// Replies grow on every snapshot. The prefix ending at the last paragraph
// break outside a code fence is rendered once per width and cached; only
// the trailing paragraph is re-rendered.
type AssistantTextBlock struct {
	text     string
	renderer *markdown.Renderer

	finalizedRaw     string
	finalizedByWidth map[int]string
}

// NewAssistantTextBlock creates a block rendering through r.
func NewAssistantTextBlock(r *markdown.Renderer) *AssistantTextBlock {
	return &AssistantTextBlock{
		renderer:         r,
		finalizedByWidth: make(map[int]string),
	}
}

// SetText replaces the reply text.
func (b *AssistantTextBlock) SetText(text string) {
	if !strings.HasPrefix(text, b.finalizedRaw) {
		b.finalizedRaw = ""
		clear(b.finalizedByWidth)
	}
	b.text = text
	b.promoteFinalized()
}

// Text returns the raw reply text.
func (b *AssistantTextBlock) Text() string { return b.text }

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	finalized := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		trailing += "\n```"
	}
	rendered := ""
	if strings.TrimSpace(trailing) != "" {
		rendered = b.renderer.Render(trailing, width)
	}
	switch {
	case rendered == "":
		return finalized
	case finalized == "":
		return rendered
	default:
		return strings.TrimRight(finalized, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
	}
}

// promoteFinalized moves the finalized boundary to the last "\n\n" whose
// prefix has every code fence closed.
func (b *AssistantTextBlock) promoteFinalized() {
	for end := len(b.text); ; {
		idx := strings.LastIndex(b.text[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := b.text[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := b.renderer.Render(b.finalizedRaw, width)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AssistantTextBlock) trailingRaw() string {
	if b.finalizedRaw == "" {
		return b.text
	}
	return strings.TrimPrefix(b.text, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence counts "```" occurrences; inline spans containing a
// literal triple backtick are miscounted.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
