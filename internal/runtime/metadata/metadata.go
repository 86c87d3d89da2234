// Package metadata builds the headers carried by tap messages.
package metadata

import (
	"maps"

	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
)

// Metadata holds the headers carried alongside a tap message.
type Metadata map[string]string

// headerKeys maps the FIX header tags copied onto tap metadata.
var headerKeys = map[int]string{
	messagepkg.TagBeginString:  KeyBeginString,
	messagepkg.TagMsgType:      KeyMsgType,
	messagepkg.TagSenderCompID: KeySenderCompID,
	messagepkg.TagTargetCompID: KeyTargetCompID,
}

// New constructs a Metadata map from alternating key/value pairs. A trailing
// key without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ForFields describes one FIX message: its direction, the connection it
// travelled on and the first value of every header tag present.
func ForFields(direction, connectionID string, fields []messagepkg.Field) Metadata {
	md := Metadata{KeyDirection: direction}
	if connectionID != "" {
		md[KeyConnectionID] = connectionID
	}
	for _, f := range fields {
		key, ok := headerKeys[f.Tag]
		if !ok {
			continue
		}
		if _, seen := md[key]; !seen {
			md[key] = f.Value
		}
	}
	return md
}

// Clone never returns nil.
func (m Metadata) Clone() Metadata {
	if len(m) == 0 {
		return Metadata{}
	}
	return maps.Clone(m)
}

// With returns a copy with key set.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// WithAll returns a copy overlaid with entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.Clone()
	maps.Copy(cloned, entries)
	return cloned
}

// Get returns the value for key or "" when absent.
func (m Metadata) Get(key string) string {
	return m[key]
}
