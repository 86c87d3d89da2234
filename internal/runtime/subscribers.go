package runtime

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
)

// MessageHandler receives every decoded inbound message on the reader
// goroutine, in stream order. Handlers must not block for long: the next
// read only starts once every handler returned.
type MessageHandler func(*messagepkg.Message)

type subscription struct {
	id      uint64
	handler MessageHandler
}

// messageSubscribers fans inbound messages out to handlers. The handler list
// is copy-on-write so subscribing from inside a handler is safe.
type messageSubscribers struct {
	logger loggingpkg.ServiceLogger
	mu     sync.Mutex
	nextID uint64
	subs   atomic.Pointer[[]subscription]
}

func newMessageSubscribers(logger loggingpkg.ServiceLogger) *messageSubscribers {
	s := &messageSubscribers{logger: logger}
	s.subs.Store(&[]subscription{})
	return s
}

// subscribe returns a func that removes the handler again.
func (s *messageSubscribers) subscribe(h MessageHandler) func() {
	if h == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	next := append(slices.Clone(*s.subs.Load()), subscription{id: id, handler: h})
	s.subs.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *messageSubscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(*s.subs.Load()), func(sub subscription) bool {
		return sub.id == id
	})
	s.subs.Store(&next)
}

func (s *messageSubscribers) len() int { return len(*s.subs.Load()) }

func (s *messageSubscribers) deliver(msg *messagepkg.Message) {
	for _, sub := range *s.subs.Load() {
		s.call(sub, msg)
	}
}

// call keeps one failing handler from starving the others.
func (s *messageSubscribers) call(sub subscription, msg *messagepkg.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Message handler panicked", fmt.Errorf("%v", r), loggingpkg.LogFields{
				"subscription": sub.id,
				"msg_type":     msg.MsgType(),
			})
		}
	}()
	sub.handler(msg)
}
