package gemini

import (
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// translator turns streamed model responses into wire events. It tracks the
// open thinking bracket and collects the text persisted afterwards.
type translator struct {
	thinking bool
	searched bool
	failure  string

	content strings.Builder
	thought strings.Builder
}

// translate returns the events for one streamed response.
func (t *translator) translate(resp *genai.GenerateContentResponse) []relay.Event {
	if resp == nil || t.failure != "" {
		return nil
	}
	if len(resp.Candidates) == 0 {
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
			t.failure = fmt.Sprintf("prompt blocked: %s", pf.BlockReason)
		}
		return nil
	}

	var events []relay.Event
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			events = append(events, t.part(part)...)
		}
	}
	if gm := cand.GroundingMetadata; gm != nil && len(gm.WebSearchQueries) > 0 && !t.searched {
		t.searched = true
		events = append(events, t.closeThinking()...)
		events = append(events,
			relay.EventToolCallStarted{Name: webSearchTool},
			relay.EventToolCallEnded{Name: webSearchTool},
		)
	}
	switch cand.FinishReason {
	case "", genai.FinishReasonStop, genai.FinishReasonMaxTokens, genai.FinishReasonUnspecified:
	default:
		t.failure = fmt.Sprintf("response stopped: %s", cand.FinishReason)
	}
	return events
}

func (t *translator) part(p *genai.Part) []relay.Event {
	if p == nil || p.Text == "" && !p.Thought {
		return nil
	}
	if p.Thought {
		var events []relay.Event
		if !t.thinking {
			t.thinking = true
			if t.thought.Len() > 0 {
				t.thought.WriteString("\n\n")
			}
			events = append(events, relay.EventThinkingStarted{})
		}
		if p.Text != "" {
			t.thought.WriteString(p.Text)
			events = append(events, relay.EventThinkingDelta{Text: p.Text})
		}
		return events
	}
	events := t.closeThinking()
	t.content.WriteString(p.Text)
	return append(events, relay.EventContentDelta{Text: p.Text})
}

func (t *translator) closeThinking() []relay.Event {
	if !t.thinking {
		return nil
	}
	t.thinking = false
	return []relay.Event{relay.EventThinkingEnded{}}
}

// finish returns the closing events. err is the iterator's error, if any.
func (t *translator) finish(messageID string, err error) []relay.Event {
	events := t.closeThinking()
	switch {
	case err != nil:
		return append(events, relay.EventError{Message: err.Error()})
	case t.failure != "":
		return append(events, relay.EventError{Message: t.failure})
	default:
		return append(events, relay.EventDone{MessageID: messageID})
	}
}
