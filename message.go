package relay

import (
	"fmt"
	"strings"
	"time"
)

// Conversation is a persisted thread between the user and one agent.
// The store owns it after creation; its ID never changes.
type Conversation struct {
	ID        string
	AgentRef  string
	CreatedAt time.Time
	Messages  []Message
}

// Message is a persisted conversation message.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Thinking  string   // assistant reasoning, empty for user messages
	ImageIDs  []string // generated images (assistant) or attachments (user)
	CreatedAt time.Time
}

// MediaRef references media attached to an outbound message.
type MediaRef struct {
	URL      string
	MimeType string
}

// OutboundMessage is the user-authored message that starts a session.
// It is never mutated after submission.
type OutboundMessage struct {
	Text   string
	Images []MediaRef
}

// Image returns the single attached image, if any.
func (m OutboundMessage) Image() (MediaRef, bool) {
	if len(m.Images) == 0 {
		return MediaRef{}, false
	}
	return m.Images[0], true
}

// Validate checks that the message carries text or an image, and at most
// one image since the stream request carries a single attachment.
func (m OutboundMessage) Validate() error {
	if strings.TrimSpace(m.Text) == "" && len(m.Images) == 0 {
		return fmt.Errorf("message is empty: %w", ErrValidation)
	}
	if len(m.Images) > 1 {
		return fmt.Errorf("at most one image may be attached, got %d: %w", len(m.Images), ErrValidation)
	}
	for _, img := range m.Images {
		if img.URL == "" {
			return fmt.Errorf("image reference has no URL: %w", ErrValidation)
		}
	}
	return nil
}
