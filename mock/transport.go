// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.Transport = (*Transport)(nil)
	_ relay.Chunks    = (*Chunks)(nil)
)

// Transport is a test double for relay.Transport.
// Set OpenFn before calling Open.
type Transport struct {
	OpenFn func(ctx context.Context, req relay.StreamRequest) (relay.Chunks, error)
}

// Open delegates to OpenFn.
func (t *Transport) Open(ctx context.Context, req relay.StreamRequest) (relay.Chunks, error) {
	return t.OpenFn(ctx, req)
}

// Chunks is a test double for relay.Chunks.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// because the controller always closes the stream and tests rarely care.
type Chunks struct {
	NextFn  func() ([]byte, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (c *Chunks) Next() ([]byte, error) {
	return c.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (c *Chunks) Close() error {
	if c.CloseFn == nil {
		return nil
	}
	return c.CloseFn()
}
