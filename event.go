package relay

// Event is a sealed interface representing one decoded stream event.
// Events are purely semantic. Transport errors come from Chunks.Next, not
// from events; a server-reported failure arrives as EventError.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventUserMessageAck confirms the server persisted the outbound message.
type EventUserMessageAck struct {
	ID string
}

func (EventUserMessageAck) event() {}

// EventReasoningEffort declares the reasoning effort used for this response.
type EventReasoningEffort struct {
	Effort ReasoningEffort
}

func (EventReasoningEffort) event() {}

// EventThinkingStarted opens a block of private reasoning text.
type EventThinkingStarted struct{}

func (EventThinkingStarted) event() {}

// EventThinkingDelta carries an increment of reasoning text.
type EventThinkingDelta struct {
	Text string
}

func (EventThinkingDelta) event() {}

// EventThinkingEnded closes the current reasoning block.
type EventThinkingEnded struct{}

func (EventThinkingEnded) event() {}

// EventToolCallStarted signals that the assistant began using a named
// capability, e.g. web search or image generation.
type EventToolCallStarted struct {
	Name string
}

func (EventToolCallStarted) event() {}

// EventToolCallEnded signals that the named capability finished.
type EventToolCallEnded struct {
	Name string
}

func (EventToolCallEnded) event() {}

// EventContentDelta carries an increment of visible answer text.
type EventContentDelta struct {
	Text string
}

func (EventContentDelta) event() {}

// EventImageGenerated reports an image produced during the response.
// It is informational and does not alter the content text.
type EventImageGenerated struct {
	ID string
}

func (EventImageGenerated) event() {}

// EventDone is the terminal success marker.
type EventDone struct {
	MessageID string // empty when the server does not report it
}

func (EventDone) event() {}

// EventError is the terminal failure marker reported by the server.
type EventError struct {
	Message string
}

func (EventError) event() {}

// EventUnknown is the fallback for event types this client does not
// recognize, and for payloads that failed to decode.
type EventUnknown struct {
	Type    string
	Payload string
}

func (EventUnknown) event() {}

// Interface compliance checks.
var (
	_ Event = EventUserMessageAck{}
	_ Event = EventReasoningEffort{}
	_ Event = EventThinkingStarted{}
	_ Event = EventThinkingDelta{}
	_ Event = EventThinkingEnded{}
	_ Event = EventToolCallStarted{}
	_ Event = EventToolCallEnded{}
	_ Event = EventContentDelta{}
	_ Event = EventImageGenerated{}
	_ Event = EventDone{}
	_ Event = EventError{}
	_ Event = EventUnknown{}
)
