// Package tags splits one complete FIX message into ordered tag/value events.
package tags

import (
	"bytes"
	"fmt"
	"math"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
)

// SOH is the canonical FIX field separator.
const SOH byte = 0x01

// Handler receives the field events of one message.
type Handler interface {
	MessageStart()
	// OnTag receives one field. value aliases the parsed buffer and is only
	// valid for the duration of the call.
	OnTag(tag int, value []byte)
	// IsFinished is checked after every field; returning true stops the scan.
	IsFinished() bool
	MessageEnd()
}

// ParseError describes a malformed tag identifier found in strict mode.
type ParseError struct {
	// Message is the whole input with separators rendered as '|'.
	Message string
	// Offset is where the offending field starts.
	Offset int
	Tag    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid tag %q at offset %d in message: %s", e.Tag, e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error {
	return errspkg.ErrParse
}

// Parser emits field events to a Handler. A Parser is not safe for
// concurrent use; the reader goroutine owns it.
type Parser struct {
	handler    Handler
	separators [256]bool
}

// NewParser returns a parser splitting fields on the given separators, SOH
// when none are given.
func NewParser(handler Handler, separators ...byte) *Parser {
	if handler == nil {
		panic("nanofix: tag handler cannot be nil")
	}
	p := &Parser{handler: handler}
	if len(separators) == 0 {
		separators = []byte{SOH}
	}
	for _, sep := range separators {
		p.separators[sep] = true
	}
	return p
}

// Parse scans msg. A field whose tag is not a non-negative decimal integer
// aborts the scan without MessageEnd: lenient mode returns false, strict
// mode returns false and a *ParseError. A trailing field without a
// separator is ignored.
func (p *Parser) Parse(msg []byte, strict bool) (bool, error) {
	h := p.handler
	h.MessageStart()

	fieldStart := 0
	equals := -1
	for i, b := range msg {
		switch {
		case p.separators[b]:
			if equals >= 0 {
				tag, ok := parseTag(msg[fieldStart:equals])
				if !ok {
					if strict {
						return false, &ParseError{
							Message: Printable(msg),
							Offset:  fieldStart,
							Tag:     string(msg[fieldStart:equals]),
						}
					}
					return false, nil
				}
				h.OnTag(tag, msg[equals+1:i])
				if h.IsFinished() {
					h.MessageEnd()
					return true, nil
				}
			}
			fieldStart = i + 1
			equals = -1
		case b == '=' && equals < 0:
			equals = i
		}
	}

	h.MessageEnd()
	return true, nil
}

func parseTag(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int(c - '0')
		if n > (math.MaxInt32-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

// Printable renders SOH separators as '|'.
func Printable(msg []byte) string {
	return string(bytes.ReplaceAll(msg, []byte{SOH}, []byte{'|'}))
}
