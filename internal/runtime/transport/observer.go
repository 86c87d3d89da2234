package transport

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/drblury/nanofix/internal/runtime/logging"
)

// Observer is notified about connection lifecycle events. Callbacks run on
// the goroutine that detected the event and must not block for long.
type Observer interface {
	ConnectionEstablished()
	ConnectionClosed()
}

// PublishingObserver fans events out to registered observers. The list is
// copy-on-write: a broadcast iterates the snapshot taken when it started,
// so observers may register or unregister from inside a callback.
// Observers are compared with ==, register pointers.
type PublishingObserver struct {
	logger    logging.ServiceLogger
	mu        sync.Mutex
	observers atomic.Pointer[[]Observer]
}

func NewPublishingObserver(logger logging.ServiceLogger) *PublishingObserver {
	if logger == nil {
		logger = logging.NewNopServiceLogger()
	}
	p := &PublishingObserver{logger: logger}
	p.observers.Store(&[]Observer{})
	return p
}

// Register adds o once; registering the same observer twice is a no-op.
func (p *PublishingObserver) Register(o Observer) {
	if o == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	current := *p.observers.Load()
	if slices.Contains(current, o) {
		return
	}
	next := append(slices.Clone(current), o)
	p.observers.Store(&next)
}

func (p *PublishingObserver) Unregister(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := *p.observers.Load()
	idx := slices.Index(current, o)
	if idx < 0 {
		return
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	p.observers.Store(&next)
}

func (p *PublishingObserver) Len() int {
	return len(*p.observers.Load())
}

func (p *PublishingObserver) ConnectionEstablished() {
	for _, o := range *p.observers.Load() {
		p.notify("established", o.ConnectionEstablished)
	}
}

func (p *PublishingObserver) ConnectionClosed() {
	for _, o := range *p.observers.Load() {
		p.notify("closed", o.ConnectionClosed)
	}
}

// notify isolates observers from each other: a panicking observer is logged
// and the broadcast continues.
func (p *PublishingObserver) notify(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Connection observer panicked", fmt.Errorf("%v", r), logging.LogFields{"event": event})
		}
	}()
	fn()
}
