package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/ids"
	"github.com/drblury/nanofix/internal/runtime/logging"
)

// State is the lifecycle position of a TCPTransport.
type State int32

const (
	StateIdle State = iota
	StateAwaitingChannel
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingChannel:
		return "awaiting_channel"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one established socket.
type Conn struct {
	net.Conn
	id        string
	inbound   bool
	closeOnce sync.Once
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) Inbound() bool { return c.inbound }

// TCPTransport owns at most one live connection and an optional listener.
// Closure of a connection is handled exactly once, by whichever of the
// reader or a failing writer sees it first, through HandleClosed.
type TCPTransport struct {
	addr          string
	stayListening bool
	factory       SocketFactory
	observers     *PublishingObserver
	logger        logging.ServiceLogger

	mu       sync.Mutex
	listener net.Listener

	current atomic.Pointer[Conn]
	state   atomic.Int32
}

func NewTCPTransport(addr string, stayListening bool, factory SocketFactory, observers *PublishingObserver, logger logging.ServiceLogger) *TCPTransport {
	if factory == nil {
		panic("nanofix: socket factory is required")
	}
	if observers == nil {
		panic("nanofix: observer registry is required")
	}
	if logger == nil {
		logger = logging.NewNopServiceLogger()
	}
	return &TCPTransport{
		addr:          addr,
		stayListening: stayListening,
		factory:       factory,
		observers:     observers,
		logger:        logger.With(logging.LogFields{"address": addr}),
	}
}

func (t *TCPTransport) Addr() string { return t.addr }

func (t *TCPTransport) State() State { return State(t.state.Load()) }

// Current returns the live connection or nil.
func (t *TCPTransport) Current() *Conn { return t.current.Load() }

func (t *TCPTransport) IsConnected() bool { return t.current.Load() != nil }

// ListenAddr returns the bound listener address, useful when binding port 0.
func (t *TCPTransport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Connect starts an outbound connection. The returned channel yields nil
// once the connection is established and observers were notified, or the
// dial error.
func (t *TCPTransport) Connect(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	t.state.Store(int32(StateAwaitingChannel))
	t.factory.ConnectAsync(ctx, t.addr,
		func(raw net.Conn) {
			t.establish(raw, false)
			result <- nil
		},
		func(err error) {
			t.state.CompareAndSwap(int32(StateAwaitingChannel), int32(StateClosed))
			result <- err
		})
	return result
}

// Listen binds synchronously and accepts one connection asynchronously.
func (t *TCPTransport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return errspkg.ErrAlreadyListening
	}
	ln, err := t.factory.Bind(t.addr)
	if err != nil {
		return err
	}
	t.listener = ln
	t.state.Store(int32(StateAwaitingChannel))
	t.logger.Info("Listening for inbound connection", logging.LogFields{"listen_address": ln.Addr().String()})
	t.factory.AcceptAsync(ln, t.acceptCallback())
	return nil
}

func (t *TCPTransport) acceptCallback() func(net.Conn) {
	return func(raw net.Conn) { t.establish(raw, true) }
}

// StopListening closes the listener. An established connection is kept.
func (t *TCPTransport) StopListening() error {
	t.mu.Lock()
	ln := t.listener
	t.listener = nil
	t.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// KillSocket aborts the connection with a reset instead of an orderly
// shutdown. The reader goroutine observes the failure and broadcasts it.
func (t *TCPTransport) KillSocket() error {
	c := t.current.Load()
	if c == nil {
		return errspkg.ErrNotConnected
	}
	if tcp, ok := c.Conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return c.Conn.Close()
}

// Close shuts the connection down. The reader goroutine observes it and
// broadcasts the closure.
func (t *TCPTransport) Close() error {
	c := t.current.Load()
	if c == nil {
		return nil
	}
	return c.Conn.Close()
}

// Write sends p on the current connection. A failed write closes the
// connection, broadcasts the closure and returns a *TransportClosedError.
func (t *TCPTransport) Write(p []byte) error {
	c := t.current.Load()
	if c == nil {
		return errspkg.ErrNotConnected
	}
	if _, err := c.Write(p); err != nil {
		t.HandleClosed(c)
		return &errspkg.TransportClosedError{Err: err}
	}
	return nil
}

func (t *TCPTransport) establish(raw net.Conn, inbound bool) {
	c := &Conn{Conn: raw, id: ids.NewConnectionID(), inbound: inbound}
	if old := t.current.Load(); old != nil {
		// a second connection replaces the first
		t.HandleClosed(old)
	}
	t.current.Store(c)
	t.state.Store(int32(StateEstablished))
	t.logger.Info("Connection established", logging.LogFields{
		"connection_id": c.id,
		"remote":        raw.RemoteAddr().String(),
		"inbound":       inbound,
	})
	t.observers.ConnectionEstablished()
}

// HandleClosed runs the closure sequence for c at most once: close the
// socket, broadcast ConnectionClosed, then either accept again (stay
// listening and c was inbound) or close the listener.
func (t *TCPTransport) HandleClosed(c *Conn) {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		_ = c.Conn.Close()
		t.current.CompareAndSwap(c, nil)
		t.state.Store(int32(StateClosed))
		t.logger.Info("Connection closed", logging.LogFields{"connection_id": c.id})

		t.observers.ConnectionClosed()

		t.mu.Lock()
		ln := t.listener
		if ln == nil {
			t.mu.Unlock()
			return
		}
		if t.stayListening && c.inbound {
			t.mu.Unlock()
			t.state.Store(int32(StateAwaitingChannel))
			t.factory.AcceptAsync(ln, t.acceptCallback())
			return
		}
		t.listener = nil
		t.mu.Unlock()
		if err := ln.Close(); err != nil {
			t.logger.Error("Failed to stop listening", err, nil)
		}
	})
}
