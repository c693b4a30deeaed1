// Package session drives streaming assistant responses: it makes sure a
// conversation exists, opens the transport stream, feeds it through the
// wire parser into a per-session accumulator and reconciles with the store
// once the stream stops.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fwojciec/relay/session"

	// DefaultReconcileTimeout bounds the post-stream store refetch.
	DefaultReconcileTimeout = 10 * time.Second

	// errPrematureEnd is reported when the body ends without done or error.
	errPrematureEnd = "stream ended before completion"
)

// Controller starts sessions and enforces at most one active session per
// conversation.
type Controller struct {
	transport relay.Transport
	store     relay.Store
	logger    *slog.Logger
	tracer    trace.Tracer
	agentRef  string
	timeout   time.Duration
	parser    []sse.ParserOption

	mu     sync.Mutex
	active map[string]*Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = tp.Tracer(tracerName) }
}

// WithAgent sets the agent reference used when creating conversations.
func WithAgent(ref string) Option {
	return func(c *Controller) { c.agentRef = ref }
}

// WithReconcileTimeout bounds the post-stream refetch.
func WithReconcileTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithMaxLineSize bounds a single wire line; see sse.WithMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(c *Controller) { c.parser = append(c.parser, sse.WithMaxLineSize(n)) }
}

// New creates a Controller streaming through transport and reconciling with
// store.
func New(transport relay.Transport, store relay.Store, opts ...Option) *Controller {
	c := &Controller{
		transport: transport,
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer(tracerName),
		timeout:   DefaultReconcileTimeout,
		active:    make(map[string]*Session),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StartOption configures a single Start invocation.
type StartOption func(*startConfig)

type startConfig struct {
	listeners []func(relay.Response)
}

// WithListener registers a listener before the stream opens, so it observes
// every snapshot from the first one. See Session.OnUpdate.
func WithListener(fn func(relay.Response)) StartOption {
	return func(c *startConfig) {
		c.listeners = append(c.listeners, fn)
	}
}

// Start sends msg into the conversation and streams the response in the
// background. An empty conversationID creates a new conversation first; if
// that fails, Start returns the error and nothing is streamed.
//
// Start returns relay.ErrSessionBusy while another session streams into the
// same conversation. ctx bounds the whole session: cancelling it aborts the
// stream like Session.Cancel.
func (c *Controller) Start(ctx context.Context, conversationID string, msg relay.OutboundMessage, opts ...StartOption) (*Session, error) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if conversationID != "" && c.Active(conversationID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, relay.ErrSessionBusy)
	}

	if conversationID == "" {
		conv, err := c.store.CreateConversation(ctx, c.agentRef)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
		c.logger.Info("conversation created", "conversation_id", conversationID, "agent", c.agentRef)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := newSession(conversationID, cancel)
	s.listeners = cfg.listeners

	if !c.register(s) {
		cancel()
		return nil, fmt.Errorf("conversation %s: %w", conversationID, relay.ErrSessionBusy)
	}

	go c.run(sctx, s, relay.StreamRequest{ConversationID: conversationID, Message: msg})
	return s, nil
}

// Active reports whether a session is streaming into the conversation.
func (c *Controller) Active(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[conversationID]
	return ok
}

func (c *Controller) register(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[s.id]; ok {
		return false
	}
	c.active[s.id] = s
	return true
}

func (c *Controller) unregister(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[s.id] == s {
		delete(c.active, s.id)
	}
}

// stats counts what the read loop saw, for logs and the session span.
type stats struct {
	events       int
	decodeErrors int
}

// run is the session's read loop. Reconciliation runs exactly once after
// the stream stops, whatever the outcome.
func (c *Controller) run(ctx context.Context, s *Session, req relay.StreamRequest) {
	ctx, span := c.tracer.Start(ctx, "relay.session",
		trace.WithAttributes(attribute.String("relay.conversation_id", s.id)))
	log := c.logger.With("conversation_id", s.id)

	s.acc.Start()
	s.publish()

	var st stats
	c.stream(ctx, s, req, log, &st)
	s.cancel()

	final := s.Response()
	log.Info("stream finished",
		"state", final.State,
		"events", st.events,
		"decode_errors", st.decodeErrors,
		"content_bytes", len(final.ContentText),
	)

	conv, err := c.reconcile(ctx, s.id, log)
	s.reconciled(conv, err)
	c.unregister(s)

	span.SetAttributes(
		attribute.String("relay.state", string(final.State)),
		attribute.Int("relay.events", st.events),
		attribute.Int("relay.decode_errors", st.decodeErrors),
	)
	if err != nil {
		span.RecordError(err)
	}
	if final.State == relay.StateError {
		span.SetStatus(codes.Error, final.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	close(s.done)
}

// stream pumps transport chunks through the parser and decoder into the
// accumulator until a terminal state is reached.
func (c *Controller) stream(ctx context.Context, s *Session, req relay.StreamRequest, log *slog.Logger, st *stats) {
	chunks, err := c.transport.Open(ctx, req)
	if err != nil {
		stop(ctx, s, log, err)
		return
	}
	defer chunks.Close()

	parser := sse.NewParser(c.parser...)
	for {
		if ctx.Err() != nil {
			s.abort()
			return
		}
		chunk, err := chunks.Next()
		if len(chunk) > 0 && c.apply(ctx, s, parser.Feed(chunk), log, st) {
			return
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			if c.apply(ctx, s, parser.Flush(), log, st) {
				return
			}
			if ctx.Err() != nil {
				s.abort()
				return
			}
			log.Warn("stream ended without terminal event")
			s.fail(errPrematureEnd)
			return
		default:
			stop(ctx, s, log, err)
			return
		}
	}
}

// apply decodes and applies frames in order. It reports whether the session
// reached a terminal state. Cancellation is checked before every frame so
// frames already buffered are not applied once the session is cancelled.
func (c *Controller) apply(ctx context.Context, s *Session, frames []sse.Frame, log *slog.Logger, st *stats) bool {
	for _, f := range frames {
		if ctx.Err() != nil {
			s.abort()
			return true
		}
		evt, err := sse.Decode(f)
		if err != nil {
			st.decodeErrors++
			log.Warn("dropping undecodable frame", "type", f.Type, "error", err)
		} else if u, ok := evt.(relay.EventUnknown); ok {
			log.Debug("ignoring unknown event", "type", u.Type)
		}
		st.events++
		if s.acc.Apply(evt) {
			s.publish()
		}
		if s.acc.Terminal() {
			return true
		}
	}
	return false
}

// stop ends the session after a transport error. When the session was
// cancelled the error is a consequence of the cancellation, not a failure.
func stop(ctx context.Context, s *Session, log *slog.Logger, err error) {
	if ctx.Err() != nil {
		s.abort()
		return
	}
	log.Error("stream failed", "error", err)
	s.fail(err.Error())
}

// reconcile invalidates any cached copy of the conversation and refetches
// it. It runs on a context detached from the session's cancellation.
func (c *Controller) reconcile(ctx context.Context, id string, log *slog.Logger) (relay.Conversation, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if inv, ok := c.store.(relay.Invalidator); ok {
		inv.Invalidate(id)
	}
	conv, err := c.store.Conversation(ctx, id)
	if err != nil {
		log.Error("reconcile failed", "error", err)
		return relay.Conversation{}, fmt.Errorf("reconcile conversation %s: %w", id, err)
	}
	log.Debug("reconciled", "messages", len(conv.Messages))
	return conv, nil
}
