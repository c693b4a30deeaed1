package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fwojciec/relay"
)

// CreateConversation creates an empty conversation for agentRef.
func (c *Client) CreateConversation(ctx context.Context, agentRef string) (relay.Conversation, error) {
	var a apiConversation
	if err := c.getJSON(ctx, http.MethodPost, conversationsPath, apiCreateRequest{Agent: agentRef}, &a); err != nil {
		return relay.Conversation{}, fmt.Errorf("http: create conversation: %w", err)
	}
	conv := a.toConversation()
	c.put(conv)
	return conv, nil
}

// Conversation returns the conversation, from the cache when present.
func (c *Client) Conversation(ctx context.Context, id string) (relay.Conversation, error) {
	if conv, ok := c.cached(id); ok {
		return conv, nil
	}
	var a apiConversation
	if err := c.getJSON(ctx, http.MethodGet, conversationsPath+"/"+url.PathEscape(id), nil, &a); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return relay.Conversation{}, fmt.Errorf("http: conversation %s: %w", id, relay.ErrConversationNotFound)
		}
		return relay.Conversation{}, fmt.Errorf("http: conversation %s: %w", id, err)
	}
	conv := a.toConversation()
	c.put(conv)
	return conv, nil
}

// List returns conversation summaries as ordered by the backend.
func (c *Client) List(ctx context.Context) ([]relay.Conversation, error) {
	var l apiConversationList
	if err := c.getJSON(ctx, http.MethodGet, conversationsPath, nil, &l); err != nil {
		return nil, fmt.Errorf("http: list conversations: %w", err)
	}
	convs := make([]relay.Conversation, 0, len(l.Conversations))
	for _, a := range l.Conversations {
		conv := a.toConversation()
		conv.Messages = nil
		convs = append(convs, conv)
	}
	return convs, nil
}

// Invalidate drops the cached copy of the conversation.
func (c *Client) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

func (c *Client) cached(id string) (relay.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.cache[id]
	return conv, ok
}

func (c *Client) put(conv relay.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[conv.ID] = conv
}

func (c *Client) getJSON(ctx context.Context, method, path string, body, v any) error {
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
