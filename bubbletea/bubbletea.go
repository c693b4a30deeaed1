// Package bubbletea provides a Bubble Tea TUI for relay conversations.
package bubbletea

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/session"
)

// Starter starts response sessions.
type Starter interface {
	Start(ctx context.Context, conversationID string, msg relay.OutboundMessage, opts ...session.StartOption) (*session.Session, error)
}

var _ Starter = (*session.Controller)(nil)

// Run creates and runs the Bubble Tea TUI program. It blocks until the
// program exits and returns the final model. Cancelling ctx quits the
// program.
func Run(ctx context.Context, m Model) (Model, error) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}
	return m, err
}

// SnapshotMsg delivers the latest snapshot of the running session.
type SnapshotMsg struct {
	Response relay.Response
}

// SessionStartedMsg reports the outcome of starting a session.
type SessionStartedMsg struct {
	Session *session.Session
	Err     error
}

// SessionDoneMsg signals that the session stopped and was reconciled.
// Err is the reconciliation error.
type SessionDoneMsg struct {
	Response     relay.Response
	Conversation relay.Conversation
	Err          error
}

// HistoryMsg carries the conversation loaded when the TUI starts.
type HistoryMsg struct {
	Conversation relay.Conversation
	Err          error
}

// feed hands snapshots from a session listener to the model. push never
// blocks: snapshots are complete, so an unread one is simply replaced.
type feed struct {
	mu     sync.Mutex
	latest relay.Response
	ready  chan struct{}
}

func newFeed() *feed {
	return &feed{ready: make(chan struct{}, 1)}
}

func (f *feed) push(r relay.Response) {
	f.mu.Lock()
	f.latest = r
	f.mu.Unlock()
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *feed) take() relay.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func startSession(starter Starter, conversationID string, msg relay.OutboundMessage, f *feed) tea.Cmd {
	return func() tea.Msg {
		s, err := starter.Start(context.Background(), conversationID, msg, session.WithListener(f.push))
		return SessionStartedMsg{Session: s, Err: err}
	}
}

// listen waits for the next snapshot or the end of the session.
func listen(s *session.Session, f *feed) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.ready:
			return SnapshotMsg{Response: f.take()}
		case <-s.Done():
			conv, err := s.Conversation()
			return SessionDoneMsg{Response: s.Response(), Conversation: conv, Err: err}
		}
	}
}

func loadHistory(store relay.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		conv, err := store.Conversation(ctx, id)
		return HistoryMsg{Conversation: conv, Err: err}
	}
}
