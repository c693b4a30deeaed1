package relay

// Theme assigns ANSI color indices (0-15) to the parts of a relay
// transcript, so output follows the terminal's own palette. A negative index
// disables color for that part.
type Theme struct {
	User      int // submitted messages
	Reasoning int // thinking text and the thinking status
	Tool      int // tool-in-use status
	Heading   int // markdown headings, links and the spinner
	Code      int // inline code background
	Muted     int // hints and secondary text

	// Markers for how a response ended.
	Done    int
	Failed  int
	Stopped int
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		User:      4,
		Reasoning: 8,
		Tool:      3,
		Heading:   5,
		Code:      0,
		Muted:     8,
		Done:      2,
		Failed:    1,
		Stopped:   11,
	}
}

// StateColor returns the color marking a response in state s. Responses
// that have not ended use the muted color.
func (t Theme) StateColor(s State) int {
	switch s {
	case StateDone:
		return t.Done
	case StateError:
		return t.Failed
	case StateAborted:
		return t.Stopped
	default:
		return t.Muted
	}
}
