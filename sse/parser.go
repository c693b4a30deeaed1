// Package sse implements the response stream wire format: SSE-style records
// of one event line followed by JSON data lines, terminated by a blank line.
//
//	event: content_delta
//	data: {"content":"Hi"}
//
// Parser turns arbitrarily chunked bytes into frames, Decode turns frames
// into relay events, and Encoder writes events back to the wire.
package sse

import (
	"bytes"
	"strings"
)

// DefaultMaxLineSize bounds a single wire line. Longer lines are dropped
// together with the record they belong to.
const DefaultMaxLineSize = 1 << 20

// Frame is one complete record: the event type and its raw payload.
// Multiple data lines are joined with "\n".
type Frame struct {
	Type string
	Data string
}

// Parser splits a chunked byte stream into frames. It keeps a single
// carry-over buffer holding the trailing incomplete line, so chunk boundaries
// may fall anywhere, including inside a line or a multi-byte character.
//
// Parser never fails: malformed lines are dropped and parsing continues.
// It is not safe for concurrent use.
type Parser struct {
	buf      []byte
	maxLine  int
	skipping bool // discarding the remainder of an overlong line
	sawCR    bool // previous line ended in '\r'; a leading '\n' belongs to it

	event    string
	hasEvent bool
	data     []string
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxLineSize sets the maximum accepted line length in bytes.
func WithMaxLineSize(n int) ParserOption {
	return func(p *Parser) { p.maxLine = n }
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxLine: DefaultMaxLineSize}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Feed consumes one chunk and returns every frame it completes, in wire
// order. A record is complete once the blank line after its data lines has
// arrived, or once the next event line starts a new record.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.buf = append(p.buf, chunk...)

	var frames []Frame
	for {
		if p.sawCR && len(p.buf) > 0 {
			if p.buf[0] == '\n' {
				p.buf = p.buf[1:]
			}
			p.sawCR = false
		}
		i := bytes.IndexAny(p.buf, "\r\n")
		if i < 0 {
			break
		}
		line := p.buf[:i]
		p.sawCR = p.buf[i] == '\r'
		p.buf = p.buf[i+1:]

		if p.skipping {
			p.skipping = false
			continue
		}
		if len(line) > p.maxLine {
			p.reset()
			continue
		}
		if f, ok := p.line(string(line)); ok {
			frames = append(frames, f)
		}
	}

	if len(p.buf) > p.maxLine {
		// The line can never be accepted; stop buffering it.
		p.buf = p.buf[:0]
		p.skipping = true
		p.reset()
	}
	p.compact()
	return frames
}

// Flush is called once the transport is exhausted. The unterminated trailing
// line, if any, is taken as final, and a pending record with data is
// returned. The parser is empty afterwards.
func (p *Parser) Flush() []Frame {
	var frames []Frame
	if len(p.buf) > 0 && !p.skipping && len(p.buf) <= p.maxLine {
		if f, ok := p.line(string(p.buf)); ok {
			frames = append(frames, f)
		}
	}
	if f, ok := p.dispatch(); ok {
		frames = append(frames, f)
	}
	p.buf = nil
	p.skipping = false
	p.sawCR = false
	return frames
}

// line interprets one complete line.
func (p *Parser) line(line string) (Frame, bool) {
	if line == "" {
		return p.dispatch()
	}
	if line[0] == ':' {
		return Frame{}, false
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		f, ok := p.dispatch()
		p.event = value
		p.hasEvent = true
		return f, ok
	case "data":
		if !p.hasEvent {
			// Data with no event line before it is malformed.
			return Frame{}, false
		}
		p.data = append(p.data, value)
	}
	return Frame{}, false
}

// dispatch returns the pending record if it has both an event line and data,
// and clears it either way.
func (p *Parser) dispatch() (Frame, bool) {
	defer p.reset()
	if !p.hasEvent || len(p.data) == 0 {
		return Frame{}, false
	}
	return Frame{Type: p.event, Data: strings.Join(p.data, "\n")}, true
}

func (p *Parser) reset() {
	p.event = ""
	p.hasEvent = false
	p.data = nil
}

// compact moves the carry-over to the front of a fresh slice once the
// consumed prefix dominates, so long streams do not pin old chunks.
func (p *Parser) compact() {
	if cap(p.buf) > 4096 && len(p.buf) < cap(p.buf)/4 {
		p.buf = append([]byte(nil), p.buf...)
	}
}
