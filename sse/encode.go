package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/relay"
)

// flusher matches http.Flusher without importing net/http.
type flusher interface {
	Flush()
}

// Encoder writes relay events in wire format. When the underlying writer
// can flush (an http.ResponseWriter, for instance) every record is flushed
// so the client sees it immediately.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one record.
func (e *Encoder) Encode(evt relay.Event) error {
	typ, payload, err := marshal(evt)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(typ)
	b.WriteByte('\n')
	for line := range strings.SplitSeq(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return fmt.Errorf("sse: write %s: %w", typ, err)
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

func marshal(evt relay.Event) (string, string, error) {
	var (
		typ string
		v   any
	)
	switch e := evt.(type) {
	case relay.EventUserMessageAck:
		typ, v = TypeUserMessage, idPayload{ID: e.ID}
	case relay.EventReasoningEffort:
		typ, v = TypeReasoningEffort, effortPayload{Effort: string(e.Effort)}
	case relay.EventThinkingStarted:
		typ, v = TypeThinkingStart, emptyPayload{}
	case relay.EventThinkingDelta:
		typ, v = TypeThinkingDelta, contentPayload{Content: e.Text}
	case relay.EventThinkingEnded:
		typ, v = TypeThinkingEnd, emptyPayload{}
	case relay.EventToolCallStarted:
		typ, v = TypeToolCallStart, namePayload{Name: e.Name}
	case relay.EventToolCallEnded:
		typ, v = TypeToolCallEnd, namePayload{Name: e.Name}
	case relay.EventContentDelta:
		typ, v = TypeContentDelta, contentPayload{Content: e.Text}
	case relay.EventImageGenerated:
		typ, v = TypeImageGenerated, idPayload{ID: e.ID}
	case relay.EventDone:
		typ, v = TypeDone, donePayload{MessageID: e.MessageID}
	case relay.EventError:
		typ, v = TypeError, errorPayload{Message: e.Message}
	case relay.EventUnknown:
		payload := e.Payload
		if payload == "" {
			payload = "{}"
		}
		return e.Type, payload, nil
	default:
		return "", "", fmt.Errorf("sse: cannot encode %T", evt)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("sse: marshal %s: %w", typ, err)
	}
	return typ, string(data), nil
}
