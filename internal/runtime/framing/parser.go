// Package framing extracts complete FIX messages from an arbitrarily
// segmented byte stream.
//
// A message starts at the begin string marker "8=FIX" and ends at the SOH
// that terminates the checksum field ("<SOH>10=nnn<SOH>"). Bytes outside a
// message are discarded. A message that spans several segments is
// accumulated in a fragment buffer of MaxMessageSize bytes and delivered
// once its terminator arrives.
//
// Messages handed to Callback.OnMessage alias internal or caller buffers and
// are only valid for the duration of the call.
//
// Known limitation: on malformed streams where a begin string straddles the
// boundary of a buffered fragment, the interrupted fragment and the next
// message may be delivered as one truncated message.
package framing

import (
	"bytes"
	"fmt"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
)

const soh byte = 0x01

var (
	startMarker    = []byte("8=FIX")
	checksumMarker = []byte{soh, '1', '0', '='}
)

// Callback receives the output of a StreamParser.
type Callback interface {
	OnMessage(msg []byte)
	// OnTruncatedMessage is invoked immediately before the OnMessage call
	// that delivers an incomplete message.
	OnTruncatedMessage()
	OnParseError(reason string)
}

// StreamParser is not safe for concurrent use. Each connection owns one and
// resets it when the connection is replaced.
type StreamParser struct {
	callback Callback
	maxSize  int
	// frag is either empty, a partial begin string (1-4 bytes) or an
	// in-flight message starting with "8=FIX". cap(frag) == maxSize.
	frag []byte
}

// NewStreamParser panics on a nil callback or when maxMessageSize cannot hold
// a begin string.
func NewStreamParser(callback Callback, maxMessageSize int) *StreamParser {
	if callback == nil {
		panic("nanofix: stream parser callback is required")
	}
	if maxMessageSize < len(startMarker) {
		panic(fmt.Sprintf("nanofix: max message size %d is too small", maxMessageSize))
	}
	return &StreamParser{
		callback: callback,
		maxSize:  maxMessageSize,
		frag:     make([]byte, 0, maxMessageSize),
	}
}

// MaxMessageSize reports the fragment buffer capacity.
func (p *StreamParser) MaxMessageSize() int { return p.maxSize }

// Buffered reports how many bytes are held back waiting for the next segment.
func (p *StreamParser) Buffered() int { return len(p.frag) }

// Reset drops any buffered fragment.
func (p *StreamParser) Reset() { p.frag = p.frag[:0] }

// Parse consumes one segment. Completed messages are delivered in stream
// order. A completed message larger than MaxMessageSize is reported through
// OnParseError and the returned error wraps errors.ErrMessageTooLarge;
// parsing continues after it. A panic raised while parsing, including one
// from the callback, clears the parser and is returned as
// errors.ErrParserState.
func (p *StreamParser) Parse(segment []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.Reset()
			reason := fmt.Sprintf("%v", r)
			p.callback.OnParseError(reason)
			err = fmt.Errorf("%w: %s", errspkg.ErrParserState, reason)
		}
	}()

	pos := 0
	if len(p.frag) > 0 {
		pos = p.continueFragment(segment)
	}
	for pos < len(segment) {
		n, scanErr := p.scan(segment[pos:])
		pos += n
		if scanErr != nil && err == nil {
			err = scanErr
		}
	}
	return err
}

func (p *StreamParser) continueFragment(seg []byte) int {
	if len(p.frag) < len(startMarker) {
		return p.continuePending(seg)
	}
	return p.continueMessage(seg)
}

// continuePending extends a partial begin string left over from the previous
// segment. If the segment does not complete it the pending bytes are dropped
// and the segment is scanned from its start.
func (p *StreamParser) continuePending(seg []byte) int {
	have := len(p.frag)
	need := len(startMarker) - have
	if len(seg) < need {
		if bytes.Equal(seg, startMarker[have:have+len(seg)]) {
			p.frag = append(p.frag, seg...)
			return len(seg)
		}
		p.Reset()
		return 0
	}
	if !bytes.Equal(seg[:need], startMarker[have:]) {
		p.Reset()
		return 0
	}
	p.frag = append(p.frag, seg[:need]...)
	return need + p.continueMessage(seg[need:])
}

// continueMessage appends to an in-flight message and returns how many bytes
// of seg were consumed.
func (p *StreamParser) continueMessage(seg []byte) int {
	if len(seg) == 0 {
		return 0
	}
	boundary := len(seg)
	if i := bytes.Index(seg, startMarker); i >= 0 {
		boundary = i
	}
	if e := messageEnd(seg, 0); e >= 0 && e < boundary {
		boundary = e
	}

	old := len(p.frag)
	n := min(boundary, cap(p.frag)-old)
	p.frag = append(p.frag, seg[:n]...)

	// the terminator may straddle the old fragment and the new bytes
	if end := messageEnd(p.frag, len(startMarker)); end >= 0 {
		p.callback.OnMessage(p.frag[:end])
		p.Reset()
		return end - old
	}
	if len(p.frag) == cap(p.frag) || n < len(seg) {
		p.flushTruncated()
	}
	return n
}

// scan handles a segment while no fragment is buffered and returns the
// number of bytes consumed.
func (p *StreamParser) scan(seg []byte) (int, error) {
	s := bytes.Index(seg, startMarker)
	if s < 0 {
		p.keepPartialMarker(seg)
		return len(seg), nil
	}

	body := s + len(startMarker)
	end := messageEnd(seg, body)
	next := bytes.Index(seg[body:], startMarker)
	if next >= 0 {
		next += body
	}

	switch {
	case end >= 0 && (next < 0 || end <= next):
		return end, p.deliver(seg[s:end])
	case next >= 0:
		// the next begin string arrived before a terminator
		p.callback.OnTruncatedMessage()
		p.callback.OnMessage(seg[s:min(next, s+p.maxSize)])
		return next, nil
	}

	rest := seg[s:]
	if len(rest) < p.maxSize {
		p.frag = append(p.frag, rest...)
		return len(seg), nil
	}
	p.frag = append(p.frag, rest[:p.maxSize]...)
	p.flushTruncated()
	return s + p.maxSize, nil
}

func (p *StreamParser) deliver(msg []byte) error {
	if len(msg) > p.maxSize {
		p.callback.OnParseError(fmt.Sprintf("message of %d bytes exceeds max message size %d", len(msg), p.maxSize))
		return fmt.Errorf("%w: %d > %d", errspkg.ErrMessageTooLarge, len(msg), p.maxSize)
	}
	p.callback.OnMessage(msg)
	return nil
}

func (p *StreamParser) flushTruncated() {
	p.callback.OnTruncatedMessage()
	p.callback.OnMessage(p.frag)
	p.Reset()
}

// keepPartialMarker retains a trailing proper prefix of the begin string so
// that a marker split across segments is still recognised.
func (p *StreamParser) keepPartialMarker(seg []byte) {
	for k := len(startMarker) - 1; k > 0; k-- {
		if bytes.HasSuffix(seg, startMarker[:k]) {
			p.frag = append(p.frag, startMarker[:k]...)
			return
		}
	}
}

// messageEnd returns the index just past the SOH terminating the first
// checksum field found at or after from, or -1.
func messageEnd(b []byte, from int) int {
	if from > len(b) {
		return -1
	}
	i := bytes.Index(b[from:], checksumMarker)
	if i < 0 {
		return -1
	}
	value := from + i + len(checksumMarker)
	j := bytes.IndexByte(b[value:], soh)
	if j < 0 {
		return -1
	}
	return value + j + 1
}
