package session

import (
	"context"
	"sync"

	"github.com/fwojciec/relay"
)

// Session is one send-and-stream lifecycle bound to a conversation.
//
// The read loop owns the accumulator; callers observe it through snapshots
// pushed to listeners or read with Response. All methods are safe for
// concurrent use.
type Session struct {
	id     string
	cancel context.CancelFunc
	acc    *relay.Accumulator // touched only by the read loop
	done   chan struct{}

	// deliver serializes listener calls so every listener sees snapshots in
	// order, including the catch-up snapshot sent by OnUpdate.
	deliver sync.Mutex

	mu           sync.Mutex
	listeners    []func(relay.Response)
	last         relay.Response
	conv         relay.Conversation
	reconcileErr error
}

func newSession(id string, cancel context.CancelFunc) *Session {
	return &Session{
		id:     id,
		cancel: cancel,
		acc:    relay.NewAccumulator(),
		done:   make(chan struct{}),
		last:   relay.Response{State: relay.StateIdle},
	}
}

// ConversationID returns the conversation the session streams into. It is
// set even when the controller created the conversation.
func (s *Session) ConversationID() string {
	return s.id
}

// OnUpdate registers a listener called after every state change. It is
// called once immediately with the latest snapshot so late subscribers miss
// nothing. Listeners run on the session's read loop and must not block or
// call OnUpdate themselves.
func (s *Session) OnUpdate(fn func(relay.Response)) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	last := s.last
	s.mu.Unlock()

	fn(last)
}

// Cancel stops the stream cooperatively. The session ends in the aborted
// state unless it already reached a terminal state. Reconciliation still
// runs. Cancel is idempotent.
func (s *Session) Cancel() {
	s.cancel()
}

// Done is closed once the stream stopped and reconciliation finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is done and returns the final snapshot.
// It returns ctx's error if ctx ends first; the session keeps running.
func (s *Session) Wait(ctx context.Context) (relay.Response, error) {
	select {
	case <-s.done:
		return s.Response(), nil
	case <-ctx.Done():
		return s.Response(), ctx.Err()
	}
}

// Response returns the latest snapshot.
func (s *Session) Response() relay.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Conversation returns the conversation as refetched from the store after
// the stream stopped, or the reconciliation error. Before Done is closed it
// returns a zero Conversation and nil error.
func (s *Session) Conversation() (relay.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv, s.reconcileErr
}

// publish snapshots the accumulator and pushes it to every listener.
func (s *Session) publish() {
	snap := s.acc.Snapshot()

	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.last = snap
	listeners := append([]func(relay.Response){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Session) abort() {
	if s.acc.Abort() {
		s.publish()
	}
}

func (s *Session) fail(msg string) {
	if s.acc.Fail(msg) {
		s.publish()
	}
}

func (s *Session) reconciled(conv relay.Conversation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = conv
	s.reconcileErr = err
}
