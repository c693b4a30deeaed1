package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.Store       = (*Store)(nil)
	_ relay.Invalidator = (*Store)(nil)
	_ relay.Recorder    = (*Store)(nil)
	_ relay.Lister      = (*Store)(nil)
)

// Store is a test double for relay.Store. It also satisfies
// relay.Invalidator, relay.Recorder and relay.Lister; InvalidateFn is nil-safe,
// the other function fields panic when nil.
type Store struct {
	CreateConversationFn func(ctx context.Context, agentRef string) (relay.Conversation, error)
	ConversationFn       func(ctx context.Context, id string) (relay.Conversation, error)
	InvalidateFn         func(id string)
	AppendMessageFn      func(ctx context.Context, conversationID string, msg relay.Message) error
	ListFn               func(ctx context.Context) ([]relay.Conversation, error)
}

// CreateConversation delegates to CreateConversationFn.
func (s *Store) CreateConversation(ctx context.Context, agentRef string) (relay.Conversation, error) {
	return s.CreateConversationFn(ctx, agentRef)
}

// Conversation delegates to ConversationFn.
func (s *Store) Conversation(ctx context.Context, id string) (relay.Conversation, error) {
	return s.ConversationFn(ctx, id)
}

// Invalidate delegates to InvalidateFn when set.
func (s *Store) Invalidate(id string) {
	if s.InvalidateFn != nil {
		s.InvalidateFn(id)
	}
}

// AppendMessage delegates to AppendMessageFn.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg relay.Message) error {
	return s.AppendMessageFn(ctx, conversationID, msg)
}

// List delegates to ListFn.
func (s *Store) List(ctx context.Context) ([]relay.Conversation, error) {
	return s.ListFn(ctx)
}
