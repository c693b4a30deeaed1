package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fwojciec/relay"
)

// Open posts the message and returns the raw event-stream body. Only the
// connection attempt goes through the circuit breaker; failures while the
// body streams are reported by Next.
func (c *Client) Open(ctx context.Context, req relay.StreamRequest) (relay.Chunks, error) {
	path := conversationsPath + "/" + url.PathEscape(req.ConversationID) + "/messages"
	resp, err := c.do(ctx, http.MethodPost, path, newSendRequest(req.Message), "text/event-stream")
	if err != nil {
		return nil, fmt.Errorf("http: open stream: %w", err)
	}
	c.logger.Debug("stream opened", "conversation_id", req.ConversationID, "status", resp.StatusCode)
	return relay.NewChunkReader(resp.Body), nil
}
