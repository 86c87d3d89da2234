package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/logging"
)

const waitFor = 2 * time.Second

type eventObserver struct {
	events chan string
}

func newEventObserver() *eventObserver {
	return &eventObserver{events: make(chan string, 16)}
}

func (o *eventObserver) ConnectionEstablished() { o.events <- "established" }
func (o *eventObserver) ConnectionClosed()      { o.events <- "closed" }

func (o *eventObserver) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-o.events:
		require.Equal(t, want, got)
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// watch plays the reader goroutine: read until failure, then hand the
// closure to the transport.
func watch(tr *TCPTransport, c *Conn) {
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := c.Read(buf); err != nil {
				tr.HandleClosed(c)
				return
			}
		}
	}()
}

type endpoint struct {
	tr  *TCPTransport
	obs *eventObserver
}

func newEndpoint(t *testing.T, addr string, stayListening bool) endpoint {
	t.Helper()
	logger := logging.NewNopServiceLogger()
	registry := NewPublishingObserver(logger)
	obs := newEventObserver()
	registry.Register(obs)
	tr := NewTCPTransport(addr, stayListening, NewAsyncTCPFactory(logger, 2, time.Second), registry, logger)
	t.Cleanup(func() {
		_ = tr.Close()
		_ = tr.StopListening()
	})
	return endpoint{tr: tr, obs: obs}
}

func connect(t *testing.T, e endpoint) {
	t.Helper()
	select {
	case err := <-e.tr.Connect(context.Background()):
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("connect timed out")
	}
	e.obs.expect(t, "established")
	watch(e.tr, e.tr.Current())
}

func TestTCPTransportLifecycle(t *testing.T) {
	server := newEndpoint(t, "127.0.0.1:0", true)
	require.NoError(t, server.tr.Listen())
	assert.Equal(t, StateAwaitingChannel, server.tr.State())
	addr := server.tr.ListenAddr().String()

	client := newEndpoint(t, addr, false)
	connect(t, client)
	server.obs.expect(t, "established")
	watch(server.tr, server.tr.Current())

	assert.True(t, client.tr.IsConnected())
	assert.True(t, server.tr.IsConnected())
	assert.Equal(t, StateEstablished, server.tr.State())
	assert.True(t, server.tr.Current().Inbound())
	assert.False(t, client.tr.Current().Inbound())

	require.NoError(t, client.tr.KillSocket())
	client.obs.expect(t, "closed")
	server.obs.expect(t, "closed")
	assert.False(t, client.tr.IsConnected())

	// still listening: a second client is accepted
	require.Eventually(t, func() bool { return server.tr.State() == StateAwaitingChannel }, waitFor, 10*time.Millisecond)
	second := newEndpoint(t, addr, false)
	connect(t, second)
	server.obs.expect(t, "established")
}

func TestTCPTransportStopsListeningAfterClose(t *testing.T) {
	server := newEndpoint(t, "127.0.0.1:0", false)
	require.NoError(t, server.tr.Listen())
	addr := server.tr.ListenAddr().String()

	client := newEndpoint(t, addr, false)
	connect(t, client)
	server.obs.expect(t, "established")
	watch(server.tr, server.tr.Current())

	require.NoError(t, client.tr.Close())
	client.obs.expect(t, "closed")
	server.obs.expect(t, "closed")

	require.Eventually(t, func() bool { return server.tr.ListenAddr() == nil }, waitFor, 10*time.Millisecond)
	assert.Equal(t, StateClosed, server.tr.State())
	require.Eventually(t, func() bool {
		probe, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		_ = probe.Close()
		return false
	}, waitFor, 10*time.Millisecond)

	late := newEndpoint(t, addr, false)
	select {
	case err := <-late.tr.Connect(context.Background()):
		require.Error(t, err)
		assert.ErrorIs(t, err, errspkg.ErrConnectFailed)
	case <-time.After(waitFor):
		t.Fatal("connect did not fail")
	}
}

func TestTCPTransportWrite(t *testing.T) {
	server := newEndpoint(t, "127.0.0.1:0", false)
	require.NoError(t, server.tr.Listen())

	client := newEndpoint(t, server.tr.ListenAddr().String(), false)
	assert.ErrorIs(t, client.tr.Write([]byte("x")), errspkg.ErrNotConnected)

	connect(t, client)
	server.obs.expect(t, "established")

	payload := []byte("8=FIX.4.2\x019=5\x0135=A\x0110=178\x01")
	require.NoError(t, client.tr.Write(payload))

	got := make([]byte, len(payload))
	conn := server.tr.Current()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestTCPTransportWriteFailureBroadcastsOnce(t *testing.T) {
	server := newEndpoint(t, "127.0.0.1:0", false)
	require.NoError(t, server.tr.Listen())

	client := newEndpoint(t, server.tr.ListenAddr().String(), false)
	select {
	case err := <-client.tr.Connect(context.Background()):
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("connect timed out")
	}
	client.obs.expect(t, "established")

	c := client.tr.Current()
	require.NoError(t, c.Conn.Close())

	err := client.tr.Write([]byte("data"))
	var closed *errspkg.TransportClosedError
	require.True(t, errors.As(err, &closed))
	assert.ErrorIs(t, err, errspkg.ErrTransportClosed)
	client.obs.expect(t, "closed")

	client.tr.HandleClosed(c)
	select {
	case ev := <-client.obs.events:
		t.Fatalf("unexpected second event %q", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTCPTransportListenTwice(t *testing.T) {
	server := newEndpoint(t, "127.0.0.1:0", false)
	require.NoError(t, server.tr.Listen())
	assert.ErrorIs(t, server.tr.Listen(), errspkg.ErrAlreadyListening)
}

func TestTCPTransportBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	server := newEndpoint(t, taken.Addr().String(), false)
	err = server.tr.Listen()
	assert.ErrorIs(t, err, errspkg.ErrBind)
}

func TestKillWithoutConnection(t *testing.T) {
	e := newEndpoint(t, "127.0.0.1:0", false)
	assert.ErrorIs(t, e.tr.KillSocket(), errspkg.ErrNotConnected)
	assert.NoError(t, e.tr.Close())
	assert.Equal(t, StateIdle, e.tr.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_channel", StateAwaitingChannel.String())
	assert.Equal(t, "established", StateEstablished.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
