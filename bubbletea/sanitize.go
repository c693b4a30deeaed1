package bubbletea

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// sanitize strips terminal escape sequences and control characters from
// text that came over the network. Tabs and newlines survive; CRLF becomes
// LF and lone carriage returns are dropped.
func sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
