// Package ids mints the identifiers nanofix stamps on connections and tap
// messages. All of them are ULIDs, so they sort by creation time.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConnectionPrefix marks connection ids apart from message ids in logs.
const ConnectionPrefix = "conn_"

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a 26 character ULID. Ids minted in the same
// millisecond still increase.
func CreateULID() string {
	return next(time.Now()).String()
}

// NewConnectionID names one established socket.
func NewConnectionID() string {
	return ConnectionPrefix + CreateULID()
}

// Time recovers the creation time of a message or connection id.
func Time(id string) (time.Time, bool) {
	id, _ = strings.CutPrefix(id, ConnectionPrefix)
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func next(at time.Time) ulid.ULID {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}
