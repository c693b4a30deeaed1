package markdown_test

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/markdown"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	t.Parallel()

	theme := relay.DefaultTheme()

	t.Run("empty input returns empty string", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("", 80, theme)
		assert.Equal(t, "", result)
	})

	t.Run("plain paragraph", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("hello world", 80, theme)
		assert.Contains(t, result, "hello world")
	})

	t.Run("heading keeps its marker without color", func(t *testing.T) {
		t.Parallel()
		heading := ansi.Strip(markdown.Render("# Title", 80, theme))
		paragraph := ansi.Strip(markdown.Render("Title", 80, theme))
		assert.Contains(t, heading, "# Title")
		assert.NotEqual(t, heading, paragraph)
	})

	t.Run("bold text", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("**bold**", 80, theme)
		assert.Contains(t, result, "bold")
	})

	t.Run("italic text", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("*italic*", 80, theme)
		assert.Contains(t, result, "italic")
	})

	t.Run("inline code", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("`code`", 80, theme)
		assert.Contains(t, result, "code")
	})

	t.Run("fenced code block preserves content without reflow", func(t *testing.T) {
		t.Parallel()
		src := "```go\nfmt.Println(\"hello world\")\n```"
		result := markdown.Render(src, 20, theme)
		assert.Contains(t, result, `fmt.Println("hello world")`)
	})

	t.Run("fenced code block shows language label", func(t *testing.T) {
		t.Parallel()
		src := "```python\nprint('hi')\n```"
		result := markdown.Render(src, 80, theme)
		assert.Contains(t, result, "python")
		assert.Contains(t, result, "print('hi')")
	})

	t.Run("bullet list", func(t *testing.T) {
		t.Parallel()
		src := "- one\n- two\n- three"
		result := markdown.Render(src, 80, theme)
		assert.Contains(t, result, "one")
		assert.Contains(t, result, "two")
		assert.Contains(t, result, "three")
	})

	t.Run("ordered list", func(t *testing.T) {
		t.Parallel()
		src := "1. first\n2. second"
		result := markdown.Render(src, 80, theme)
		assert.Contains(t, result, "first")
		assert.Contains(t, result, "second")
	})

	t.Run("link shows text and URL", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("[click](https://example.com)", 80, theme)
		assert.Contains(t, result, "click")
		assert.Contains(t, result, "example.com")
	})

	t.Run("paragraph wraps to width", func(t *testing.T) {
		t.Parallel()
		long := "word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12"
		result := markdown.Render(long, 30, theme)
		assert.Contains(t, result, "word1")
		assert.Contains(t, result, "word12")
		lines := strings.Split(result, "\n")
		assert.Greater(t, len(lines), 1)
	})

	t.Run("bold italic text", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("***bold italic***", 80, theme)
		assert.Contains(t, result, "bold italic")
	})

	t.Run("multiple paragraphs separated by blank lines", func(t *testing.T) {
		t.Parallel()
		src := "first paragraph\n\nsecond paragraph"
		result := markdown.Render(src, 80, theme)
		assert.Contains(t, result, "first paragraph")
		assert.Contains(t, result, "second paragraph")
	})

	t.Run("heading levels", func(t *testing.T) {
		t.Parallel()
		result := ansi.Strip(markdown.Render("## Subtitle", 80, theme))
		assert.Contains(t, result, "## Subtitle")
		assert.NotContains(t, result, "### Subtitle")
	})

	t.Run("nested list", func(t *testing.T) {
		t.Parallel()
		src := "- outer\n  - inner one\n  - inner two"
		result := markdown.Render(src, 80, theme)
		assert.Contains(t, result, "outer")
		assert.Contains(t, result, "inner one")
		assert.Contains(t, result, "inner two")
	})

	t.Run("list item continuation lines are indented", func(t *testing.T) {
		t.Parallel()
		src := "- this is a very long list item that should wrap and have continuation lines properly indented"
		result := markdown.Render(src, 30, theme)
		lines := strings.Split(result, "\n")
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				assert.True(t, strings.HasPrefix(line, "  "), "continuation line should be indented: %q", line)
			}
		}
	})
	t.Run("whitespace only input", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, markdown.Render(" \n\n ", 80, theme))
	})

	t.Run("strikethrough", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("~~gone~~", 80, theme)
		assert.Contains(t, result, "gone")
		assert.NotContains(t, result, "~~")
	})

	t.Run("blockquote gets a gutter", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("> quoted line", 80, theme)
		assert.Contains(t, result, "▎")
		assert.Contains(t, result, "quoted line")
	})

	t.Run("bare URL is linkified", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("see https://example.com/docs now", 80, theme)
		assert.Contains(t, result, "https://example.com/docs")
	})

	t.Run("ordered list keeps start number", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("3. third\n4. fourth", 80, theme)
		assert.Contains(t, result, "3. third")
		assert.Contains(t, result, "4. fourth")
	})

	t.Run("unterminated fence renders as code", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("Here:\n\n```go\nfunc main() {", 80, theme)
		assert.Contains(t, result, "Here:")
		assert.Contains(t, result, "func main() {")
		assert.Contains(t, result, "│")
	})

	t.Run("zero width falls back to default", func(t *testing.T) {
		t.Parallel()
		result := markdown.Render("hello", 0, theme)
		assert.Contains(t, result, "hello")
	})
}

func TestRenderer_Reuse(t *testing.T) {
	t.Parallel()

	r := markdown.NewRenderer(relay.DefaultTheme())
	first := r.Render("**one**", 80)
	second := r.Render("**one**", 80)
	assert.Equal(t, first, second)
	assert.Equal(t, markdown.Render("**one**", 80, relay.DefaultTheme()), first)
}
