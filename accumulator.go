package relay

import (
	"slices"
	"strings"
)

// State is the lifecycle state of a response session.
type State string

const (
	StateIdle    State = "idle"    // Before Start.
	StateRunning State = "running" // Receiving events.
	StateDone    State = "done"    // Server sent the done marker.
	StateError   State = "error"   // Server error, transport failure or premature end.
	StateAborted State = "aborted" // Cancelled by the caller.
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateAborted
}

// ToolCallStatus describes the progress of the active tool call.
type ToolCallStatus string

const ToolCallStarting ToolCallStatus = "starting"

// ToolCall is the capability the assistant is currently using.
type ToolCall struct {
	Name   string
	Status ToolCallStatus
}

// Response is an immutable snapshot of an Accumulator. Listeners receive a
// fresh copy after every state change and may keep it.
type Response struct {
	State           State
	ReasoningEffort ReasoningEffort
	Thinking        bool
	ThinkingText    string
	ToolCall        *ToolCall
	ContentText     string
	UserMessageID   string
	MessageID       string
	ImageIDs        []string
	Error           string // set when State is StateError
}

// thinkingSeparator joins consecutive reasoning blocks of one response.
const thinkingSeparator = "\n\n"

// Accumulator is the per-session state machine. It folds the ordered event
// sequence into a Response.
//
// It is not safe for concurrent use: exactly one goroutine, the session's
// read loop, owns it. Everyone else reads snapshots.
//
// A second ThinkingStarted keeps the earlier reasoning and appends to it
// instead of clearing it, so ThinkingText stays append-only.
//
// Invariants while running:
//   - ContentText and ThinkingText only grow.
//   - State moves from running to exactly one terminal state and stays there.
//   - Events applied in idle or in a terminal state change nothing.
type Accumulator struct {
	state    State
	effort   ReasoningEffort
	thinking bool
	thought  strings.Builder
	toolCall *ToolCall
	content  strings.Builder
	userMsg  string
	msgID    string
	images   []string
	errMsg   string
}

// NewAccumulator returns an idle Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{state: StateIdle}
}

// Start resets the accumulated response and moves to running.
func (a *Accumulator) Start() {
	*a = Accumulator{state: StateRunning}
}

// State returns the current state.
func (a *Accumulator) State() State {
	return a.state
}

// Terminal reports whether a terminal state was reached.
func (a *Accumulator) Terminal() bool {
	return a.state.Terminal()
}

// Apply folds one event into the response and reports whether anything
// observable changed.
func (a *Accumulator) Apply(evt Event) bool {
	if a.state != StateRunning {
		return false
	}
	switch e := evt.(type) {
	case EventUserMessageAck:
		if e.ID == a.userMsg {
			return false
		}
		a.userMsg = e.ID
	case EventReasoningEffort:
		if e.Effort == a.effort {
			return false
		}
		a.effort = e.Effort
	case EventThinkingStarted:
		// A second reasoning block continues the same text rather than
		// replacing it, keeping ThinkingText append-only.
		if a.thinking {
			return false
		}
		if a.thought.Len() > 0 {
			a.thought.WriteString(thinkingSeparator)
		}
		a.thinking = true
	case EventThinkingDelta:
		if e.Text == "" {
			return false
		}
		a.thought.WriteString(e.Text)
	case EventThinkingEnded:
		if !a.thinking {
			return false
		}
		a.thinking = false
	case EventToolCallStarted:
		a.toolCall = &ToolCall{Name: e.Name, Status: ToolCallStarting}
	case EventToolCallEnded:
		if a.toolCall == nil {
			return false
		}
		a.toolCall = nil
	case EventContentDelta:
		if e.Text == "" {
			return false
		}
		a.content.WriteString(e.Text)
	case EventImageGenerated:
		a.images = append(a.images, e.ID)
	case EventDone:
		a.msgID = e.MessageID
		a.finish(StateDone)
	case EventError:
		a.errMsg = e.Message
		a.finish(StateError)
	default:
		// EventUnknown and anything added later.
		return false
	}
	return true
}

// Abort forces the aborted state. It returns false when the accumulator is
// already terminal or was never started.
func (a *Accumulator) Abort() bool {
	if a.state != StateRunning {
		return false
	}
	a.finish(StateAborted)
	return true
}

// Fail forces the error state with msg. It returns false when the
// accumulator is already terminal or was never started.
func (a *Accumulator) Fail(msg string) bool {
	if a.state != StateRunning {
		return false
	}
	a.errMsg = msg
	a.finish(StateError)
	return true
}

// finish enters a terminal state. Accumulated text is kept for display; the
// transient thinking and tool indicators are cleared.
func (a *Accumulator) finish(s State) {
	a.state = s
	a.thinking = false
	a.toolCall = nil
}

// Snapshot returns a copy of the accumulated response.
func (a *Accumulator) Snapshot() Response {
	r := Response{
		State:           a.state,
		ReasoningEffort: a.effort,
		Thinking:        a.thinking,
		ThinkingText:    a.thought.String(),
		ContentText:     a.content.String(),
		UserMessageID:   a.userMsg,
		MessageID:       a.msgID,
		ImageIDs:        slices.Clone(a.images),
		Error:           a.errMsg,
	}
	if a.toolCall != nil {
		tc := *a.toolCall
		r.ToolCall = &tc
	}
	return r
}
