// Package markdown renders assistant replies to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling.
//
// Replies are re-rendered on every content delta, so input is often cut
// mid-construct (an open code fence, half a list). Goldmark parses such
// prefixes into valid trees, which keeps the live view stable.
package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const (
	defaultWidth = 80
	minWidth     = 10
)

// Renderer renders markdown with a fixed theme. It is safe for concurrent
// use.
type Renderer struct {
	parser parser.Parser

	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	code      lipgloss.Style
	accent    lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
}

// NewRenderer creates a Renderer for theme.
func NewRenderer(theme relay.Theme) *Renderer {
	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	return &Renderer{
		parser:    md.Parser(),
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		code:      lipgloss.NewStyle().Bold(true).Background(ansiColor(theme.Code)),
		accent:    lipgloss.NewStyle().Foreground(ansiColor(theme.Heading)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
	}
}

// Render returns source as styled terminal text. Paragraphs, quotes and
// list items are word-wrapped to width; code blocks are never reflowed.
func Render(source string, width int, theme relay.Theme) string {
	return NewRenderer(theme).Render(source, width)
}

// Render returns source as styled terminal text wrapped to width.
func (r *Renderer) Render(source string, width int) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	src := []byte(source)
	doc := r.parser.Parse(text.NewReader(src))

	var b strings.Builder
	r.blocks(&b, doc, src, max(width, minWidth))
	return strings.TrimRight(b.String(), "\n")
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *Renderer) blocks(b *strings.Builder, parent ast.Node, src []byte, width int) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(b, n, src, width)
		if n.NextSibling() != nil {
			b.WriteString("\n")
		}
	}
}

func (r *Renderer) block(b *strings.Builder, node ast.Node, src []byte, width int) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		b.WriteString(wrap(r.inlines(n, src), width))
		b.WriteString("\n")

	case *ast.Heading:
		// The marker keeps headings visible when color is off.
		marker := strings.Repeat("#", n.Level) + " "
		b.WriteString(wrap(r.accent.Render(marker+r.inlines(n, src)), width))
		b.WriteString("\n")

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(src)); lang != "" {
			b.WriteString(r.muted.Render(lang))
			b.WriteString("\n")
		}
		r.codeLines(b, n, src)

	case *ast.CodeBlock:
		r.codeLines(b, n, src)

	case *ast.List:
		r.list(b, n, src, width, 0)

	case *ast.Blockquote:
		var inner strings.Builder
		r.blocks(&inner, n, src, max(width-2, minWidth))
		bar := r.muted.Render("▎")
		for line := range strings.SplitSeq(strings.TrimRight(inner.String(), "\n"), "\n") {
			b.WriteString(bar + " " + line + "\n")
		}

	case *ast.ThematicBreak:
		b.WriteString(r.muted.Render(strings.Repeat("─", min(width, defaultWidth))))
		b.WriteString("\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := range lines.Len() {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}

	default:
		r.blocks(b, node, src, width)
	}
}

func (r *Renderer) codeLines(b *strings.Builder, n ast.Node, src []byte) {
	gutter := r.muted.Render("│") + " "
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.WriteString(gutter)
		b.WriteString(strings.TrimRight(string(seg.Value(src)), "\n"))
		b.WriteString("\n")
	}
}

func (r *Renderer) list(b *strings.Builder, list *ast.List, src []byte, width, depth int) {
	num := list.Start
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		prefix := strings.Repeat("  ", depth) + marker

		var body strings.Builder
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if body.Len() > 0 {
					body.WriteString(" ")
				}
				body.WriteString(r.inlines(in, src))
			case *ast.List:
				if body.Len() > 0 {
					content := body.String()
					body.Reset()
					writeItem(b, prefix, content, width)
				}
				r.list(b, in, src, width, depth+1)
				prefix = strings.Repeat(" ", len(prefix))
			default:
				r.block(&body, ic, src, width)
			}
		}
		if body.Len() > 0 {
			writeItem(b, prefix, body.String(), width)
		}
	}
}

// writeItem writes a list item with continuation lines aligned under the
// first character after the marker.
func writeItem(b *strings.Builder, prefix, content string, width int) {
	wrapped := wrap(content, max(width-len(prefix), minWidth))
	pad := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteString(pad)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func (r *Renderer) inlines(node ast.Node, src []byte) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(&b, c, src)
	}
	return b.String()
}

func (r *Renderer) inline(b *strings.Builder, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.Write(n.Value)

	case *ast.Emphasis:
		// ***x*** parses as nested emphasis, so levels above 2 never occur.
		if n.Level == 1 {
			b.WriteString(r.italic.Render(r.inlines(n, src)))
		} else {
			b.WriteString(r.bold.Render(r.inlines(n, src)))
		}

	case *extast.Strikethrough:
		b.WriteString(r.strike.Render(r.inlines(n, src)))

	case *ast.CodeSpan:
		b.WriteString(r.code.Render(r.inlines(n, src)))

	case *ast.Link:
		b.WriteString(r.underline.Render(r.inlines(n, src)))
		b.WriteString(" ")
		b.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		b.WriteString(r.underline.Render(string(n.URL(src))))

	case *ast.Image:
		alt := r.inlines(n, src)
		if alt == "" {
			alt = "image"
		}
		b.WriteString(r.underline.Render(alt))
		b.WriteString(" ")
		b.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := range n.Segments.Len() {
			seg := n.Segments.At(i)
			b.Write(seg.Value(src))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.inline(b, c, src)
		}
	}
}
