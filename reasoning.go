package relay

import "fmt"

// ReasoningEffort is the declared reasoning level of a response.
// The zero value means the server did not declare one.
type ReasoningEffort string

const (
	EffortNone   ReasoningEffort = "none"
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// ParseReasoningEffort maps a wire value to a ReasoningEffort.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch e := ReasoningEffort(s); e {
	case EffortNone, EffortLow, EffortMedium, EffortHigh:
		return e, nil
	default:
		return "", fmt.Errorf("unknown reasoning effort %q: %w", s, ErrValidation)
	}
}
