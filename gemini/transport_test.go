package gemini_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/mock"
	"github.com/fwojciec/relay/session"
	"github.com/fwojciec/relay/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// memStore is an in-memory conversation store built on mock.Store.
type memStore struct {
	mock.Store
	mu    sync.Mutex
	convs map[string]*relay.Conversation
}

func newMemStore(history ...relay.Message) *memStore {
	s := &memStore{convs: map[string]*relay.Conversation{
		"c1": {ID: "c1", Messages: history},
	}}
	s.CreateConversationFn = func(context.Context, string) (relay.Conversation, error) {
		return relay.Conversation{ID: "c1"}, nil
	}
	s.ConversationFn = func(_ context.Context, id string) (relay.Conversation, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.convs[id]
		if !ok {
			return relay.Conversation{}, relay.ErrConversationNotFound
		}
		out := *c
		out.Messages = slices.Clone(c.Messages)
		return out, nil
	}
	s.AppendMessageFn = func(_ context.Context, id string, msg relay.Message) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.convs[id]
		if !ok {
			return relay.ErrConversationNotFound
		}
		c.Messages = append(c.Messages, msg)
		return nil
	}
	return s
}

func (s *memStore) messages() []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.convs["c1"].Messages)
}

// call records what the transport asked the model for.
type call struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// responses returns a generator yielding resps, then err if set.
func responses(c *call, err error, resps ...*genai.GenerateContentResponse) gemini.GenerateFunc {
	return func(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		if c != nil {
			*c = call{model: model, contents: contents, config: config}
		}
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, r := range resps {
				if !yield(r, nil) {
					return
				}
			}
			if err != nil {
				yield(nil, err)
			}
		}
	}
}

func parts(ps ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: ps}}},
	}
}

func collect(t *testing.T, chunks relay.Chunks) []relay.Event {
	t.Helper()
	defer chunks.Close()
	p := sse.NewParser()
	var frames []sse.Frame
	for {
		chunk, err := chunks.Next()
		frames = append(frames, p.Feed(chunk)...)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	frames = append(frames, p.Flush()...)
	events := make([]relay.Event, 0, len(frames))
	for _, f := range frames {
		e, err := sse.Decode(f)
		require.NoError(t, err)
		events = append(events, e)
	}
	return events
}

func open(t *testing.T, tr *gemini.Transport, msg relay.OutboundMessage) []relay.Event {
	t.Helper()
	chunks, err := tr.Open(context.Background(), relay.StreamRequest{ConversationID: "c1", Message: msg})
	require.NoError(t, err)
	return collect(t, chunks)
}

func TestTransport_ThinkThenAnswer(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		relay.Message{ID: "h1", Role: relay.RoleUser, Content: "earlier question"},
		relay.Message{ID: "h2", Role: relay.RoleAssistant, Content: "earlier answer", Thinking: "not replayed"},
		relay.Message{ID: "h3", Role: relay.RoleAssistant, Content: "  "},
	)
	var c call
	tr := gemini.NewWithGenerator(responses(&c, nil,
		parts(&genai.Part{Text: "plan", Thought: true}),
		parts(&genai.Part{Text: "Hi"}),
		&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: " there"}}},
			FinishReason: genai.FinishReasonStop,
		}}},
	), store, gemini.WithModel("gemini-test"), gemini.WithReasoningEffort(relay.EffortMedium), gemini.WithSystemPrompt("be brief"))

	events := open(t, tr, relay.OutboundMessage{Text: "hello"})

	msgs := store.messages()
	require.Len(t, msgs, 5)
	user, assistant := msgs[3], msgs[4]
	assert.Equal(t, relay.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Content)
	assert.Equal(t, relay.RoleAssistant, assistant.Role)
	assert.Equal(t, "Hi there", assistant.Content)
	assert.Equal(t, "plan", assistant.Thinking)

	assert.Equal(t, []relay.Event{
		relay.EventUserMessageAck{ID: user.ID},
		relay.EventReasoningEffort{Effort: relay.EffortMedium},
		relay.EventThinkingStarted{},
		relay.EventThinkingDelta{Text: "plan"},
		relay.EventThinkingEnded{},
		relay.EventContentDelta{Text: "Hi"},
		relay.EventContentDelta{Text: " there"},
		relay.EventDone{MessageID: assistant.ID},
	}, events)

	assert.Equal(t, "gemini-test", c.model)
	require.Len(t, c.contents, 3)
	assert.Equal(t, "user", c.contents[0].Role)
	assert.Equal(t, "model", c.contents[1].Role)
	assert.Equal(t, "earlier answer", c.contents[1].Parts[0].Text)
	assert.Equal(t, "hello", c.contents[2].Parts[0].Text)
	require.NotNil(t, c.config.ThinkingConfig)
	assert.True(t, c.config.ThinkingConfig.IncludeThoughts)
	assert.Equal(t, int32(8192), *c.config.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, "be brief", c.config.SystemInstruction.Parts[0].Text)
	assert.Nil(t, c.config.Tools)
}

func TestTransport_Translation(t *testing.T) {
	t.Parallel()

	t.Run("web search grounding", func(t *testing.T) {
		t.Parallel()
		var c call
		grounded := parts(&genai.Part{Text: "It is sunny."})
		grounded.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{WebSearchQueries: []string{"weather"}}
		tr := gemini.NewWithGenerator(responses(&c, nil,
			parts(&genai.Part{Text: "checking", Thought: true}),
			grounded,
			grounded,
		), newMemStore(), gemini.WithWebSearch(true))

		events := open(t, tr, relay.OutboundMessage{Text: "weather?"})

		require.Len(t, events, 9)
		assert.Equal(t, []relay.Event{
			relay.EventThinkingStarted{},
			relay.EventThinkingDelta{Text: "checking"},
			relay.EventThinkingEnded{},
			relay.EventContentDelta{Text: "It is sunny."},
			relay.EventToolCallStarted{Name: "web_search"},
			relay.EventToolCallEnded{Name: "web_search"},
			relay.EventContentDelta{Text: "It is sunny."},
		}, events[1:8])
		require.Len(t, c.config.Tools, 1)
		assert.NotNil(t, c.config.Tools[0].GoogleSearch)
	})

	t.Run("separate thinking blocks", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		tr := gemini.NewWithGenerator(responses(nil, nil,
			parts(&genai.Part{Text: "one", Thought: true}),
			parts(&genai.Part{Text: "a"}),
			parts(&genai.Part{Text: "two", Thought: true}, &genai.Part{Text: "b"}),
		), store)

		events := open(t, tr, relay.OutboundMessage{Text: "go"})

		assert.Equal(t, []relay.Event{
			relay.EventThinkingStarted{},
			relay.EventThinkingDelta{Text: "one"},
			relay.EventThinkingEnded{},
			relay.EventContentDelta{Text: "a"},
			relay.EventThinkingStarted{},
			relay.EventThinkingDelta{Text: "two"},
			relay.EventThinkingEnded{},
			relay.EventContentDelta{Text: "b"},
		}, events[1:9])
		msgs := store.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "one\n\ntwo", msgs[1].Thinking)
		assert.Equal(t, "ab", msgs[1].Content)
	})

	t.Run("nil and empty responses are skipped", func(t *testing.T) {
		t.Parallel()
		tr := gemini.NewWithGenerator(responses(nil, nil,
			nil,
			&genai.GenerateContentResponse{},
			parts(nil, &genai.Part{}),
			parts(&genai.Part{Text: "ok"}),
		), newMemStore())

		events := open(t, tr, relay.OutboundMessage{Text: "go"})

		require.Len(t, events, 3)
		assert.Equal(t, relay.EventContentDelta{Text: "ok"}, events[1])
		assert.IsType(t, relay.EventDone{}, events[2])
	})

	t.Run("prompt blocked", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		tr := gemini.NewWithGenerator(responses(nil, nil,
			&genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
				BlockReason: genai.BlockedReasonSafety,
			}},
		), store)

		events := open(t, tr, relay.OutboundMessage{Text: "go"})

		require.Len(t, events, 2)
		assert.Equal(t, relay.EventError{Message: "prompt blocked: SAFETY"}, events[1])
		assert.Len(t, store.messages(), 1, "no assistant message is recorded")
	})

	t.Run("response stopped for safety", func(t *testing.T) {
		t.Parallel()
		stopped := parts(&genai.Part{Text: "partial"})
		stopped.Candidates[0].FinishReason = genai.FinishReasonSafety
		tr := gemini.NewWithGenerator(responses(nil, nil, stopped, parts(&genai.Part{Text: "ignored"})), newMemStore())

		events := open(t, tr, relay.OutboundMessage{Text: "go"})

		assert.Equal(t, []relay.Event{
			relay.EventContentDelta{Text: "partial"},
			relay.EventError{Message: "response stopped: SAFETY"},
		}, events[1:])
	})

	t.Run("iterator error keeps partial answer", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		tr := gemini.NewWithGenerator(responses(nil, errors.New("quota exceeded"),
			parts(&genai.Part{Text: "thinking", Thought: true}),
		), store)

		events := open(t, tr, relay.OutboundMessage{Text: "go"})

		assert.Equal(t, []relay.Event{
			relay.EventThinkingStarted{},
			relay.EventThinkingDelta{Text: "thinking"},
			relay.EventThinkingEnded{},
			relay.EventError{Message: "gemini: quota exceeded"},
		}, events[1:])
		msgs := store.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "thinking", msgs[1].Thinking)
	})

	t.Run("image attachment", func(t *testing.T) {
		t.Parallel()
		var c call
		tr := gemini.NewWithGenerator(responses(&c, nil), newMemStore())

		open(t, tr, relay.OutboundMessage{Images: []relay.MediaRef{{URL: "gs://bucket/cat.png", MimeType: "image/png"}}})

		last := c.contents[len(c.contents)-1]
		require.Len(t, last.Parts, 1)
		assert.Equal(t, &genai.FileData{FileURI: "gs://bucket/cat.png", MIMEType: "image/png"}, last.Parts[0].FileData)
	})
}

func TestTransport_ThinkingConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		effort  relay.ReasoningEffort
		budget  *int32
		include bool
	}{
		{"", nil, true},
		{relay.EffortNone, genai.Ptr[int32](0), false},
		{relay.EffortLow, genai.Ptr[int32](1024), true},
		{relay.EffortHigh, genai.Ptr[int32](24576), true},
	}
	for _, tt := range tests {
		t.Run(string(tt.effort), func(t *testing.T) {
			t.Parallel()
			var c call
			tr := gemini.NewWithGenerator(responses(&c, nil), newMemStore(), gemini.WithReasoningEffort(tt.effort))

			events := open(t, tr, relay.OutboundMessage{Text: "go"})

			assert.Equal(t, tt.budget, c.config.ThinkingConfig.ThinkingBudget)
			assert.Equal(t, tt.include, c.config.ThinkingConfig.IncludeThoughts)
			if tt.effort == "" {
				assert.Len(t, events, 2)
			} else {
				assert.Equal(t, relay.EventReasoningEffort{Effort: tt.effort}, events[1])
			}
		})
	}
}

func TestTransport_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown conversation", func(t *testing.T) {
		t.Parallel()
		tr := gemini.NewWithGenerator(responses(nil, nil), newMemStore())
		_, err := tr.Open(context.Background(), relay.StreamRequest{ConversationID: "nope", Message: relay.OutboundMessage{Text: "hi"}})
		assert.ErrorIs(t, err, relay.ErrConversationNotFound)
	})

	t.Run("user message not recorded", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		store.AppendMessageFn = func(context.Context, string, relay.Message) error { return errors.New("disk full") }
		tr := gemini.NewWithGenerator(responses(nil, nil), store)
		_, err := tr.Open(context.Background(), relay.StreamRequest{ConversationID: "c1", Message: relay.OutboundMessage{Text: "hi"}})
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestTransport_Session(t *testing.T) {
	t.Parallel()

	t.Run("streams and reconciles", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		tr := gemini.NewWithGenerator(responses(nil, nil,
			parts(&genai.Part{Text: "hm", Thought: true}),
			parts(&genai.Part{Text: "Answer."}),
		), store)
		c := session.New(tr, store)

		s, err := c.Start(context.Background(), "c1", relay.OutboundMessage{Text: "question"})
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := s.Wait(ctx)
		require.NoError(t, err)

		assert.Equal(t, relay.StateDone, r.State)
		assert.Equal(t, "Answer.", r.ContentText)
		assert.Equal(t, "hm", r.ThinkingText)
		conv, err := s.Conversation()
		require.NoError(t, err)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, r.UserMessageID, conv.Messages[0].ID)
		assert.Equal(t, r.MessageID, conv.Messages[1].ID)
	})

	t.Run("cancel keeps partial answer", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		generate := func(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				if !yield(parts(&genai.Part{Text: "partial"}), nil) {
					return
				}
				<-ctx.Done()
				yield(nil, ctx.Err())
			}
		}
		c := session.New(gemini.NewWithGenerator(generate, store), store)

		var s *session.Session
		ready := make(chan struct{})
		s, err := c.Start(context.Background(), "c1", relay.OutboundMessage{Text: "question"},
			session.WithListener(func(r relay.Response) {
				if r.ContentText == "partial" {
					<-ready
					s.Cancel()
				}
			}))
		require.NoError(t, err)
		close(ready)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := s.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, relay.StateAborted, r.State)
		assert.Equal(t, "partial", r.ContentText)

		assert.Eventually(t, func() bool {
			msgs := store.messages()
			return len(msgs) == 2 && msgs[1].Content == "partial"
		}, 5*time.Second, 10*time.Millisecond)
	})
}
