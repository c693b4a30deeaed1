package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Transport = (*Transport)(nil)

// persistTimeout bounds writing the assistant message after the stream.
const persistTimeout = 10 * time.Second

// generateFunc matches genai's Models.GenerateContentStream.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Recorder is the storage the transport needs: it reads history and
// persists both sides of the exchange.
type Recorder interface {
	relay.Store
	relay.Recorder
}

// Transport implements relay.Transport by calling Gemini directly.
type Transport struct {
	generate     generateFunc
	store        Recorder
	logger       *slog.Logger
	model        string
	maxTokens    int32
	effort       relay.ReasoningEffort
	webSearch    bool
	systemPrompt string
	now          func() time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(t *Transport) { t.model = model }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int32) Option {
	return func(t *Transport) { t.maxTokens = n }
}

// WithReasoningEffort sets the thinking budget. An empty effort leaves the
// model's default and reports no effort on the stream.
func WithReasoningEffort(e relay.ReasoningEffort) Option {
	return func(t *Transport) { t.effort = e }
}

// WithWebSearch enables Google Search grounding.
func WithWebSearch(enabled bool) Option {
	return func(t *Transport) { t.webSearch = enabled }
}

// WithSystemPrompt sets the system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(t *Transport) { t.systemPrompt = prompt }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a Transport using the Gemini API with apiKey. store holds the
// conversations the transport answers in.
func New(ctx context.Context, apiKey string, store Recorder, opts ...Option) (*Transport, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return newTransport(gc.Models.GenerateContentStream, store, opts...), nil
}

func newTransport(generate generateFunc, store Recorder, opts ...Option) *Transport {
	t := &Transport{
		generate:  generate,
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Open records the user message, starts generation and returns the
// response encoded as wire frames. Generation stops when ctx is cancelled
// or the returned Chunks are closed.
func (t *Transport) Open(ctx context.Context, req relay.StreamRequest) (relay.Chunks, error) {
	conv, err := t.store.Conversation(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("gemini: load history: %w", err)
	}

	user := relay.Message{
		ID:        uuid.NewString(),
		Role:      relay.RoleUser,
		Content:   req.Message.Text,
		CreatedAt: t.now().UTC(),
	}
	if err := t.store.AppendMessage(ctx, conv.ID, user); err != nil {
		return nil, fmt.Errorf("gemini: record user message: %w", err)
	}

	contents := append(convertHistory(conv.Messages), newUserContent(req.Message))
	pr, pw := io.Pipe()
	go t.produce(ctx, pw, conv.ID, user.ID, contents)
	return relay.NewChunkReader(pr), nil
}

// produce runs generation and writes the frames into pw.
func (t *Transport) produce(ctx context.Context, pw *io.PipeWriter, conversationID, userID string, contents []*genai.Content) {
	log := t.logger.With("conversation_id", conversationID, "model", t.model)
	enc := sse.NewEncoder(pw)
	emit := func(events ...relay.Event) error {
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	opening := []relay.Event{relay.EventUserMessageAck{ID: userID}}
	if t.effort != "" {
		opening = append(opening, relay.EventReasoningEffort{Effort: t.effort})
	}
	if err := emit(opening...); err != nil {
		pw.CloseWithError(err)
		return
	}

	var (
		tr     translator
		genErr error
	)
	for resp, err := range t.generate(ctx, t.model, contents, t.config()) {
		if err != nil {
			genErr = err
			break
		}
		if err := emit(tr.translate(resp)...); err != nil {
			// Reader closed: the session is gone.
			log.Debug("stream reader closed", "error", err)
			t.persist(ctx, log, conversationID, "", &tr)
			pw.CloseWithError(err)
			return
		}
		if tr.failure != "" {
			break
		}
	}
	if genErr != nil && ctx.Err() != nil {
		t.persist(ctx, log, conversationID, "", &tr)
		pw.CloseWithError(ctx.Err())
		return
	}
	if genErr != nil {
		log.Error("generation failed", "error", genErr)
		genErr = fmt.Errorf("gemini: %w", genErr)
	}

	messageID := t.persist(ctx, log, conversationID, uuid.NewString(), &tr)
	pw.CloseWithError(emit(tr.finish(messageID, genErr)...))
}

// persist records the assistant's text gathered so far and returns the
// message id, or "" when nothing was recorded. It runs detached from ctx so
// a cancelled session still keeps its partial answer.
func (t *Transport) persist(ctx context.Context, log *slog.Logger, conversationID, id string, tr *translator) string {
	if tr.content.Len() == 0 && tr.thought.Len() == 0 {
		return ""
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	msg := relay.Message{
		ID:        id,
		Role:      relay.RoleAssistant,
		Content:   tr.content.String(),
		Thinking:  tr.thought.String(),
		CreatedAt: t.now().UTC(),
	}
	if err := t.store.AppendMessage(ctx, conversationID, msg); err != nil {
		log.Error("failed to record assistant message", "error", err)
		return ""
	}
	return id
}

func (t *Transport) config() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: t.maxTokens,
		ThinkingConfig:  thinkingConfig(t.effort),
	}
	if t.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: t.systemPrompt}},
		}
	}
	if t.webSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

// thinkingConfig maps an effort onto a thinking token budget.
func thinkingConfig(e relay.ReasoningEffort) *genai.ThinkingConfig {
	tc := &genai.ThinkingConfig{IncludeThoughts: true}
	var budget int32
	switch e {
	case relay.EffortNone:
		return &genai.ThinkingConfig{ThinkingBudget: &budget}
	case relay.EffortLow:
		budget = 1024
	case relay.EffortMedium:
		budget = 8192
	case relay.EffortHigh:
		budget = 24576
	default:
		return tc
	}
	tc.ThinkingBudget = &budget
	return tc
}

// convertHistory converts stored messages to genai contents. Thinking is
// not replayed.
func convertHistory(msgs []relay.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == relay.RoleAssistant {
			role = genai.RoleModel
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return result
}

func newUserContent(msg relay.OutboundMessage) *genai.Content {
	var parts []*genai.Part
	if msg.Text != "" {
		parts = append(parts, &genai.Part{Text: msg.Text})
	}
	if img, ok := msg.Image(); ok {
		parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: img.URL, MIMEType: img.MimeType}})
	}
	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}
