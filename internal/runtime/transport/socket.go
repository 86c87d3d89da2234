package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/logging"
)

// SocketFactory is the pluggable socket provider. Accept and connect run
// asynchronously and report through callbacks so the caller never blocks on
// the network.
type SocketFactory interface {
	// Bind opens a listener synchronously.
	Bind(addr string) (net.Listener, error)
	// AcceptAsync waits for one inbound connection on ln.
	AcceptAsync(ln net.Listener, onEstablished func(net.Conn))
	// ConnectAsync dials addr. Exactly one of the callbacks is invoked.
	ConnectAsync(ctx context.Context, addr string, onEstablished func(net.Conn), onFailure func(error))
}

// AsyncTCPFactory runs accepts and dials on a bounded pool of goroutines.
type AsyncTCPFactory struct {
	logger    logging.ServiceLogger
	dialer    net.Dialer
	listenCfg net.ListenConfig
	slots     chan struct{}
}

// NewAsyncTCPFactory allows at most workers concurrent accept/dial
// operations. A zero connectTimeout leaves dials bounded only by the context.
func NewAsyncTCPFactory(logger logging.ServiceLogger, workers int, connectTimeout time.Duration) *AsyncTCPFactory {
	if logger == nil {
		logger = logging.NewNopServiceLogger()
	}
	if workers <= 0 {
		workers = 1
	}
	return &AsyncTCPFactory{
		logger: logger,
		dialer: net.Dialer{Timeout: connectTimeout},
		slots:  make(chan struct{}, workers),
	}
}

func (f *AsyncTCPFactory) Bind(addr string) (net.Listener, error) {
	ln, err := f.listenCfg.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errspkg.ErrBind, addr, err)
	}
	return ln, nil
}

func (f *AsyncTCPFactory) AcceptAsync(ln net.Listener, onEstablished func(net.Conn)) {
	f.run(func() {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				f.logger.Info("Listener closed while waiting to accept a new inbound connection", logging.LogFields{
					"address": ln.Addr().String(),
				})
				return
			}
			f.logger.Error("Failed to accept inbound connection", err, logging.LogFields{
				"address": ln.Addr().String(),
			})
			return
		}
		onEstablished(conn)
	})
}

func (f *AsyncTCPFactory) ConnectAsync(ctx context.Context, addr string, onEstablished func(net.Conn), onFailure func(error)) {
	f.run(func() {
		conn, err := f.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			f.logger.Error("Failed to connect", err, logging.LogFields{"address": addr})
			onFailure(fmt.Errorf("%w: %s: %w", errspkg.ErrConnectFailed, addr, err))
			return
		}
		onEstablished(conn)
	})
}

// run blocks only while every slot is busy.
func (f *AsyncTCPFactory) run(task func()) {
	go func() {
		f.slots <- struct{}{}
		defer func() { <-f.slots }()
		defer func() {
			if r := recover(); r != nil {
				f.logger.Error("Socket task panicked", fmt.Errorf("%v", r), nil)
			}
		}()
		task()
	}()
}
