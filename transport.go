package relay

import "context"

// StreamRequest is what the controller asks a Transport to send.
type StreamRequest struct {
	ConversationID string
	Message        OutboundMessage
}

// Transport opens the long-lived response stream for one outbound message.
// Cancelling ctx must abort the underlying request; Chunks.Next then returns
// an error promptly.
type Transport interface {
	Open(ctx context.Context, req StreamRequest) (Chunks, error)
}

// Chunks uses a pull-based iterator pattern over raw response bytes.
// Chunk boundaries are arbitrary and carry no meaning.
//
// Next returns the next chunk, or io.EOF once the body is exhausted.
// A chunk may be returned together with a non-nil error; callers must
// consume it before handling the error. Close releases the body and is
// safe to call more than once.
type Chunks interface {
	Next() ([]byte, error)
	Close() error
}

// Store is durable conversation storage.
type Store interface {
	CreateConversation(ctx context.Context, agentRef string) (Conversation, error)
	Conversation(ctx context.Context, id string) (Conversation, error)
}

// Invalidator is implemented by stores that cache conversations on the
// client. Invalidate drops the cached copy so the next read refetches.
type Invalidator interface {
	Invalidate(id string)
}

// Recorder is implemented by stores that accept messages written by an
// in-process backend, such as the direct model transport.
type Recorder interface {
	AppendMessage(ctx context.Context, conversationID string, msg Message) error
}

// Lister is implemented by stores that can enumerate conversations, newest
// first. Listed conversations carry no messages.
type Lister interface {
	List(ctx context.Context) ([]Conversation, error)
}
