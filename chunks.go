package relay

import (
	"io"
	"sync"
)

const defaultChunkSize = 4096

// NewChunkReader adapts a byte stream, such as a response body, to Chunks.
// Each chunk is a fresh copy, so callers may retain it.
func NewChunkReader(r io.ReadCloser) Chunks {
	return &chunkReader{r: r, buf: make([]byte, defaultChunkSize)}
}

type chunkReader struct {
	r   io.ReadCloser
	buf []byte

	mu     sync.Mutex
	closed bool
}

func (c *chunkReader) Next() ([]byte, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}

	n, err := c.r.Read(c.buf)
	var chunk []byte
	if n > 0 {
		chunk = append([]byte(nil), c.buf[:n]...)
	}
	return chunk, err
}

func (c *chunkReader) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.r.Close()
}
