package runtime

import (
	"sync"

	"github.com/drblury/nanofix/internal/runtime/concurrent"
	"github.com/drblury/nanofix/internal/runtime/framing"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
)

// readerInitializer is the first transport observer. It starts a reader for
// every new connection and drives the gate AwaitConnection waits on.
type readerInitializer struct {
	transport   *transportpkg.TCPTransport
	subscribers *messageSubscribers
	tap         *messageTap
	blocker     *concurrent.Blocker
	metrics     *Metrics
	logger      loggingpkg.ServiceLogger

	maxMessageSize int
	readBufferSize int

	gate    *concurrent.Gate
	readers sync.WaitGroup
}

func (i *readerInitializer) ConnectionEstablished() {
	conn := i.transport.Current()
	if conn == nil {
		return
	}
	i.metrics.RecordConnectionEvent(ConnectionEventEstablished)

	logger := loggingpkg.ForConnection(i.logger, conn.ID(), conn.Inbound())
	handler := newRawMessageHandler(conn.ID(), i.subscribers, i.tap, i.metrics, logger)
	r := &connReader{
		conn:      conn,
		transport: i.transport,
		parser:    framing.NewStreamParser(handler, i.maxMessageSize),
		blocker:   i.blocker,
		metrics:   i.metrics,
		logger:    logger,
		bufSize:   i.readBufferSize,
	}

	i.readers.Add(1)
	go func() {
		defer i.readers.Done()
		r.run()
	}()

	i.gate.Open()
}

func (i *readerInitializer) ConnectionClosed() {
	i.metrics.RecordConnectionEvent(ConnectionEventClosed)
	i.gate.Rearm()
}

// wait blocks until every reader goroutine returned.
func (i *readerInitializer) wait() {
	i.readers.Wait()
}
