package relay

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates an outbound message or config failed validation.
	ErrValidation = errors.New("validation error")

	// ErrSessionBusy indicates a stream is already active for the conversation.
	ErrSessionBusy = errors.New("session busy: a response is already streaming for this conversation")

	// ErrConversationNotFound indicates the store has no such conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDecode indicates a frame payload could not be decoded.
	ErrDecode = errors.New("decode error")

	// ErrStreamClosed indicates a read from a closed chunk stream.
	ErrStreamClosed = errors.New("stream closed")
)
