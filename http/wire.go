package http

import (
	"time"

	"github.com/fwojciec/relay"
)

type apiError struct {
	Error string `json:"error"`
}

type apiCreateRequest struct {
	Agent string `json:"agent,omitempty"`
}

type apiImage struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

type apiSendRequest struct {
	Text  string    `json:"text"`
	Image *apiImage `json:"image,omitempty"`
}

type apiMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Thinking  string    `json:"thinking,omitempty"`
	ImageIDs  []string  `json:"image_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type apiConversation struct {
	ID        string       `json:"id"`
	Agent     string       `json:"agent,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Messages  []apiMessage `json:"messages,omitempty"`
}

type apiConversationList struct {
	Conversations []apiConversation `json:"conversations"`
}

func newSendRequest(msg relay.OutboundMessage) apiSendRequest {
	req := apiSendRequest{Text: msg.Text}
	if img, ok := msg.Image(); ok {
		req.Image = &apiImage{URL: img.URL, MimeType: img.MimeType}
	}
	return req
}

func (a apiConversation) toConversation() relay.Conversation {
	conv := relay.Conversation{
		ID:        a.ID,
		AgentRef:  a.Agent,
		CreatedAt: a.CreatedAt,
	}
	for _, m := range a.Messages {
		conv.Messages = append(conv.Messages, relay.Message{
			ID:        m.ID,
			Role:      relay.Role(m.Role),
			Content:   m.Content,
			Thinking:  m.Thinking,
			ImageIDs:  m.ImageIDs,
			CreatedAt: m.CreatedAt,
		})
	}
	return conv
}
