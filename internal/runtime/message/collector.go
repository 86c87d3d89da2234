package message

import (
	"fmt"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/tags"
)

// Collector assembles tag events into a Message and hands it to deliver on
// MessageEnd. It implements tags.Handler and is not safe for concurrent use.
type Collector struct {
	deliver func(*Message)
	current *Message
}

func NewCollector(deliver func(*Message)) *Collector {
	if deliver == nil {
		panic("nanofix: collector delivery func is required")
	}
	return &Collector{deliver: deliver}
}

func (c *Collector) MessageStart() {
	c.current = &Message{fields: make([]Field, 0, 16)}
}

func (c *Collector) OnTag(tag int, value []byte) {
	if c.current == nil {
		c.MessageStart()
	}
	c.current.Add(tag, string(value))
}

func (c *Collector) IsFinished() bool { return false }

func (c *Collector) MessageEnd() {
	msg := c.current
	c.current = nil
	if msg != nil {
		c.deliver(msg)
	}
}

// Parse decodes one complete SOH separated message in strict mode.
func Parse(raw []byte) (*Message, error) {
	return parseWith(raw, tags.SOH)
}

// ParseHuman decodes a '|' separated rendering such as the output of String.
func ParseHuman(s string) (*Message, error) {
	return parseWith([]byte(s), '|')
}

func parseWith(raw []byte, sep byte) (*Message, error) {
	var out *Message
	parser := tags.NewParser(NewCollector(func(m *Message) { out = m }), sep)
	ok, err := parser.Parse(raw, true)
	if err != nil {
		return nil, err
	}
	if !ok || out == nil || out.Len() == 0 {
		return nil, fmt.Errorf("%w: no fields in %q", errspkg.ErrParse, tags.Printable(raw))
	}
	return out, nil
}
