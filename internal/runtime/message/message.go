// Package message holds the decoded form of an inbound FIX message.
package message

import (
	"slices"
	"strconv"
	"strings"

	"github.com/drblury/nanofix/internal/runtime/jsoncodec"
)

const (
	TagBeginString  = 8
	TagMsgType      = 35
	TagSenderCompID = 49
	TagTargetCompID = 56
)

// Field is one tag/value pair.
type Field struct {
	Tag   int    `json:"tag"`
	Value string `json:"value"`
}

// Message is an ordered multimap of fields. Repeated tags keep every value
// in arrival order. The zero value is an empty message ready to use.
type Message struct {
	fields []Field
}

// New builds a message from fields in the given order.
func New(fields ...Field) *Message {
	return &Message{fields: slices.Clone(fields)}
}

func (m *Message) Add(tag int, value string) {
	m.fields = append(m.fields, Field{Tag: tag, Value: value})
}

// Values returns every value of tag in order, or nil.
func (m *Message) Values(tag int) []string {
	var values []string
	for _, f := range m.fields {
		if f.Tag == tag {
			values = append(values, f.Value)
		}
	}
	return values
}

// FirstValue returns the first value of tag.
func (m *Message) FirstValue(tag int) (string, bool) {
	for _, f := range m.fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// Get is FirstValue without the presence flag.
func (m *Message) Get(tag int) string {
	v, _ := m.FirstValue(tag)
	return v
}

func (m *Message) Has(tag int) bool {
	_, ok := m.FirstValue(tag)
	return ok
}

// HasValue reports whether tag occurs with exactly value.
func (m *Message) HasValue(tag int, value string) bool {
	for _, f := range m.fields {
		if f.Tag == tag && f.Value == value {
			return true
		}
	}
	return false
}

// Replace overwrites the first occurrence of tag and drops the rest. An
// absent tag is appended.
func (m *Message) Replace(tag int, value string) {
	kept := m.fields[:0]
	replaced := false
	for _, f := range m.fields {
		if f.Tag != tag {
			kept = append(kept, f)
			continue
		}
		if !replaced {
			f.Value = value
			kept = append(kept, f)
			replaced = true
		}
	}
	m.fields = kept
	if !replaced {
		m.Add(tag, value)
	}
}

// Fields returns a copy of the fields in order.
func (m *Message) Fields() []Field {
	return slices.Clone(m.fields)
}

func (m *Message) Len() int { return len(m.fields) }

func (m *Message) MsgType() string { return m.Get(TagMsgType) }

// FixString renders the message with SOH separators.
func (m *Message) FixString() string { return m.render('\x01') }

// String renders the message with '|' separators.
func (m *Message) String() string { return m.render('|') }

func (m *Message) render(sep byte) string {
	var sb strings.Builder
	for _, f := range m.fields {
		sb.WriteString(strconv.Itoa(f.Tag))
		sb.WriteByte('=')
		sb.WriteString(f.Value)
		sb.WriteByte(sep)
	}
	return sb.String()
}

type jsonMessage struct {
	Fields []Field `json:"fields"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	fields := m.fields
	if fields == nil {
		fields = []Field{}
	}
	return jsoncodec.Marshal(jsonMessage{Fields: fields})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var decoded jsonMessage
	if err := jsoncodec.Unmarshal(data, &decoded); err != nil {
		return err
	}
	m.fields = decoded.Fields
	return nil
}
