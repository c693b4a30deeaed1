package bubbletea_test

import (
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/mock"
	"github.com/fwojciec/relay/session"
	"github.com/stretchr/testify/require"
)

// initModel creates a model without a backend and sends a WindowSizeMsg to
// initialize the viewport.
func initModel(t *testing.T) bt.Model {
	t.Helper()
	return initModelWithSize(t, 80, 24)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, width, height int) bt.Model {
	t.Helper()
	m := bt.New(nil, nil, relay.DefaultTheme())
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// frame encodes one wire frame.
func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

// scriptedTransport delivers parts in order. With block set it then waits
// for the stream context to end instead of returning io.EOF.
func scriptedTransport(block bool, parts ...string) *mock.Transport {
	return &mock.Transport{
		OpenFn: func(ctx context.Context, _ relay.StreamRequest) (relay.Chunks, error) {
			i := 0
			return &mock.Chunks{NextFn: func() ([]byte, error) {
				if i < len(parts) {
					i++
					return []byte(parts[i-1]), nil
				}
				if block {
					<-ctx.Done()
					return nil, ctx.Err()
				}
				return nil, io.EOF
			}}, nil
		},
	}
}

// storeWith creates conversations with id "c1" and always refetches msgs.
func storeWith(msgs ...relay.Message) *mock.Store {
	return &mock.Store{
		CreateConversationFn: func(context.Context, string) (relay.Conversation, error) {
			return relay.Conversation{ID: "c1"}, nil
		},
		ConversationFn: func(_ context.Context, id string) (relay.Conversation, error) {
			return relay.Conversation{ID: id, Messages: msgs}, nil
		},
	}
}

func newController(transport relay.Transport, store relay.Store) *session.Controller {
	return session.New(transport, store)
}
