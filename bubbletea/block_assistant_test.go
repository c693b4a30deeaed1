package bubbletea_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/markdown"
	"github.com/stretchr/testify/assert"
)

func TestAssistantTextBlock_View(t *testing.T) {
	t.Parallel()

	newBlock := func() *bt.AssistantTextBlock {
		return bt.NewAssistantTextBlock(markdown.NewRenderer(relay.DefaultTheme()))
	}

	t.Run("renders markdown", func(t *testing.T) {
		t.Parallel()
		b := newBlock()
		b.SetText("# Title\n\nsome **bold** text")
		view := b.View(80)
		assert.Contains(t, view, "Title")
		assert.Contains(t, view, "bold")
		assert.NotContains(t, view, "**")
	})

	t.Run("growing text matches a full render", func(t *testing.T) {
		t.Parallel()
		full := "first paragraph\n\nsecond paragraph\n\nthird"
		b := newBlock()
		for i := 1; i <= len(full); i++ {
			b.SetText(full[:i])
		}
		assert.Equal(t, markdown.Render(full, 80, relay.DefaultTheme()), b.View(80))
	})

	t.Run("open fence renders as code", func(t *testing.T) {
		t.Parallel()
		b := newBlock()
		b.SetText("intro\n\n```go\nfunc main() {}\n\nmore code")
		view := b.View(80)
		assert.Contains(t, view, "func main() {}")
		assert.Contains(t, view, "more code")
		assert.NotContains(t, view, "```")
	})

	t.Run("replaced text drops stale cache", func(t *testing.T) {
		t.Parallel()
		b := newBlock()
		b.SetText("draft one\n\ndraft two")
		b.View(80)
		b.SetText("final answer")
		view := b.View(80)
		assert.Contains(t, view, "final answer")
		assert.NotContains(t, view, "draft")
		assert.Equal(t, "final answer", b.Text())
	})

	t.Run("empty text renders nothing", func(t *testing.T) {
		t.Parallel()
		b := newBlock()
		b.SetText("  ")
		assert.Empty(t, strings.TrimSpace(b.View(80)))
	})
}
