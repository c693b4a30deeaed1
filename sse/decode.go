package sse

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/relay"
)

// Wire event types.
const (
	TypeUserMessage     = "user_message"
	TypeReasoningEffort = "reasoning_effort"
	TypeThinkingStart   = "thinking_start"
	TypeThinkingDelta   = "thinking_delta"
	TypeThinkingEnd     = "thinking_end"
	TypeToolCallStart   = "tool_call_start"
	TypeToolCallEnd     = "tool_call_end"
	TypeContentDelta    = "content_delta"
	TypeImageGenerated  = "image_generated"
	TypeDone            = "done"
	TypeError           = "error"
)

// defaultErrorMessage is used when an error event carries no message.
const defaultErrorMessage = "server reported an error"

type idPayload struct {
	ID string `json:"id"`
}

type effortPayload struct {
	Effort string `json:"effort"`
}

type contentPayload struct {
	Content string `json:"content"`
}

type namePayload struct {
	Name string `json:"name"`
}

type donePayload struct {
	MessageID string `json:"message_id,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type emptyPayload struct{}

// Decode classifies a frame into a relay event. Unrecognized types become
// relay.EventUnknown with a nil error. A recognized type whose payload fails
// to decode also becomes relay.EventUnknown, together with an error wrapping
// relay.ErrDecode; the event is always non-nil so callers may keep going.
func Decode(f Frame) (relay.Event, error) {
	unknown := relay.EventUnknown{Type: f.Type, Payload: f.Data}

	switch f.Type {
	case TypeUserMessage:
		var p idPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventUserMessageAck{ID: p.ID}, nil
	case TypeReasoningEffort:
		var p effortPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		effort, err := relay.ParseReasoningEffort(p.Effort)
		if err != nil {
			return unknown, fmt.Errorf("%s payload: %w: %w", f.Type, relay.ErrDecode, err)
		}
		return relay.EventReasoningEffort{Effort: effort}, nil
	case TypeThinkingStart:
		if err := unmarshal(f, &emptyPayload{}); err != nil {
			return unknown, err
		}
		return relay.EventThinkingStarted{}, nil
	case TypeThinkingDelta:
		var p contentPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventThinkingDelta{Text: p.Content}, nil
	case TypeThinkingEnd:
		if err := unmarshal(f, &emptyPayload{}); err != nil {
			return unknown, err
		}
		return relay.EventThinkingEnded{}, nil
	case TypeToolCallStart:
		var p namePayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventToolCallStarted{Name: p.Name}, nil
	case TypeToolCallEnd:
		var p namePayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventToolCallEnded{Name: p.Name}, nil
	case TypeContentDelta:
		var p contentPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventContentDelta{Text: p.Content}, nil
	case TypeImageGenerated:
		var p idPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventImageGenerated{ID: p.ID}, nil
	case TypeDone:
		var p donePayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		return relay.EventDone{MessageID: p.MessageID}, nil
	case TypeError:
		var p errorPayload
		if err := unmarshal(f, &p); err != nil {
			return unknown, err
		}
		if p.Message == "" {
			p.Message = defaultErrorMessage
		}
		return relay.EventError{Message: p.Message}, nil
	default:
		return unknown, nil
	}
}

func unmarshal(f Frame, v any) error {
	if err := json.Unmarshal([]byte(f.Data), v); err != nil {
		return fmt.Errorf("%s payload: %w: %w", f.Type, relay.ErrDecode, err)
	}
	return nil
}
