// Package io journals the nanofix message tap to a JSON lines file.
//
// Each published message becomes one line. Tap records are JSON already and
// are stored inline under "record"; anything else (raw FIX text dropped in by
// an operator) is kept under "payload". A journal can be grepped, replayed
// through a client that starts without Follow, or tailed for injection.
package io

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/nanofix/internal/runtime/jsoncodec"
	"github.com/drblury/nanofix/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is used when the configuration names no journal.
const DefaultFilePath = "nanofix-tap.jsonl"

// DefaultPollInterval is how long a tailing subscriber waits at the end of
// the journal before looking for new lines.
const DefaultPollInterval = 50 * time.Millisecond

// ErrClosed is returned by a journal publisher or subscriber after Close.
var ErrClosed = errors.New("io: journal closed")

// PublisherFactory builds the journal writer. Tests replace it.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return NewPublisher(filePath, logger), nil
}

// SubscriberFactory builds the journal reader. The client's subscriber
// follows the journal, so a restart does not inject old lines twice.
var SubscriberFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub := NewSubscriber(filePath, logger)
	sub.Follow = true
	return sub, nil
}

// Register adds the journal transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build opens the journal named by cfg.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	path := cfg.GetIOFile()
	if path == "" {
		path = DefaultFilePath
	}

	pub, err := PublisherFactory(path, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	sub, err := SubscriberFactory(path, logger)
	if err != nil {
		return transport.Transport{}, errors.Join(err, pub.Close())
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// Capabilities returns the capabilities of the journal transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// entry is one journal line. Exactly one of Record and Payload is set.
type entry struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Record   json.RawMessage   `json:"record,omitempty"`
	Payload  []byte            `json:"payload,omitempty"`
}

func newEntry(topic string, msg *message.Message) entry {
	e := entry{UUID: msg.UUID, Topic: topic, Metadata: msg.Metadata}
	if jsoncodec.IsObject(msg.Payload) && json.Valid(msg.Payload) {
		e.Record = json.RawMessage(msg.Payload)
		return e
	}
	e.Payload = msg.Payload
	return e
}

func (e entry) payload() []byte {
	if len(e.Record) > 0 {
		return e.Record
	}
	return e.Payload
}

func (e entry) message() *message.Message {
	msg := message.NewMessage(e.UUID, e.payload())
	if e.Metadata != nil {
		msg.Metadata = maps.Clone(e.Metadata)
	}
	return msg
}

// Publisher appends messages to a journal. The file is opened on the first
// Publish and kept open until Close.
type Publisher struct {
	filePath string
	logger   watermill.LoggerAdapter

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// NewPublisher returns a journal writer for filePath.
func NewPublisher(filePath string, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{filePath: filePath, logger: logger}
}

// Publish appends one line per message and flushes before returning.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.file == nil {
		f, err := os.OpenFile(p.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		p.file = f
		p.w = bufio.NewWriter(f)
	}

	for _, msg := range messages {
		line, err := jsoncodec.MarshalLine(newEntry(topic, msg))
		if err != nil {
			return err
		}
		if _, err := p.w.Write(line); err != nil {
			return err
		}
	}
	return p.w.Flush()
}

// Close flushes and closes the journal. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.file == nil {
		return nil
	}
	return errors.Join(p.w.Flush(), p.file.Close())
}

// Subscriber reads messages for one topic from a journal.
type Subscriber struct {
	filePath string
	logger   watermill.LoggerAdapter

	// Follow starts at the end of the journal instead of replaying it.
	Follow bool
	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	mu      sync.Mutex
	closing chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewSubscriber returns a journal reader for filePath that replays from the
// first line.
func NewSubscriber(filePath string, logger watermill.LoggerAdapter) *Subscriber {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Subscriber{filePath: filePath, logger: logger}
}

// Subscribe streams the journal lines published to topic. Each message must
// be acked before the next is delivered; a nacked message is delivered again.
// The channel closes when ctx is done or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.closing == nil {
		s.closing = make(chan struct{})
	}
	if s.logger == nil {
		s.logger = watermill.NopLogger{}
	}

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	c := &cursor{file: f, reader: bufio.NewReader(f)}
	if s.Follow {
		if c.offset, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	closing := s.closing
	go func() {
		select {
		case <-closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	out := make(chan *message.Message)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer cancel()
		defer c.file.Close()
		s.tail(ctx, c, topic, out)
	}()
	return out, nil
}

// Close stops every subscription and waits for their channels to close.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.closing != nil {
		close(s.closing)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Subscriber) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPollInterval
}

// cursor tracks the offset just past the last complete line read, so a line
// still being written is read again once it is finished.
type cursor struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
}

func (c *cursor) next() ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	c.offset += int64(len(line))
	return line, nil
}

func (c *cursor) atStart() bool { return c.offset == 0 }

func (c *cursor) rewind() error {
	if _, err := c.file.Seek(c.offset, io.SeekStart); err != nil {
		return err
	}
	c.reader.Reset(c.file)
	return nil
}

func (s *Subscriber) tail(ctx context.Context, c *cursor, topic string, out chan<- *message.Message) {
	if !c.atStart() {
		if err := c.rewind(); err != nil {
			s.logger.Error("Failed to seek journal", err, watermill.LogFields{"file": s.filePath})
			return
		}
	}

	for ctx.Err() == nil {
		line, err := c.next()
		switch {
		case errors.Is(err, io.EOF):
			if !s.wait(ctx) {
				return
			}
			if err := c.rewind(); err != nil {
				s.logger.Error("Failed to seek journal", err, watermill.LogFields{"file": s.filePath})
				return
			}
			continue
		case err != nil:
			s.logger.Error("Failed to read journal", err, watermill.LogFields{"file": s.filePath})
			return
		}

		var e entry
		if err := jsoncodec.Unmarshal(line, &e); err != nil {
			s.logger.Error("Skipping malformed journal line", err, watermill.LogFields{
				"file":   s.filePath,
				"offset": c.offset,
			})
			continue
		}
		if e.Topic != topic {
			continue
		}
		if !s.deliver(ctx, e, out) {
			return
		}
	}
}

func (s *Subscriber) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.pollInterval())
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// deliver sends e until it is acked. It reports false once ctx is done.
func (s *Subscriber) deliver(ctx context.Context, e entry, out chan<- *message.Message) bool {
	for {
		msg := e.message()
		msg.SetContext(ctx)
		select {
		case out <- msg:
		case <-ctx.Done():
			return false
		}

		select {
		case <-msg.Acked():
			return true
		case <-msg.Nacked():
			s.logger.Debug("Redelivering nacked journal line", watermill.LogFields{"uuid": e.UUID})
		case <-ctx.Done():
			return false
		}
	}
}
