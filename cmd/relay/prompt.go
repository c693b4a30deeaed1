package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/session"
)

// runPrompt sends text, streams the reply content to out and reports the
// conversation id on errOut. Cancelling ctx stops the response; that is
// reported on errOut and is not an error.
func runPrompt(ctx context.Context, ctrl *session.Controller, conversationID, text string, out, errOut io.Writer, logger *slog.Logger) error {
	written := 0
	s, err := ctrl.Start(ctx, conversationID, relay.OutboundMessage{Text: text},
		session.WithListener(func(r relay.Response) {
			if len(r.ContentText) > written {
				fmt.Fprint(out, r.ContentText[written:])
				written = len(r.ContentText)
			}
		}))
	if err != nil {
		return err
	}

	<-s.Done()
	final := s.Response()
	if written > 0 {
		fmt.Fprintln(out)
	}
	fmt.Fprintf(errOut, "conversation: %s\n", s.ConversationID())

	if _, err := s.Conversation(); err != nil {
		logger.Warn("conversation not refreshed", "error", err)
	}

	switch final.State {
	case relay.StateError:
		return fmt.Errorf("response failed: %s", final.Error)
	case relay.StateAborted:
		fmt.Fprintln(errOut, "response stopped")
	}
	return nil
}
