package runtime

import (
	"errors"
	"io"
	"net"

	"github.com/drblury/nanofix/internal/runtime/concurrent"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/framing"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
)

// connReader is the single goroutine reading one connection. It is the only
// place a remote close or read failure is recognised.
type connReader struct {
	conn      *transportpkg.Conn
	transport *transportpkg.TCPTransport
	parser    *framing.StreamParser
	blocker   *concurrent.Blocker
	metrics   *Metrics
	logger    loggingpkg.ServiceLogger
	bufSize   int
}

func (r *connReader) run() {
	defer r.transport.HandleClosed(r.conn)

	buf := make([]byte, r.bufSize)
	for {
		n, err := r.conn.Read(buf)
		if n > 0 {
			r.blocker.MayWait()
			r.parse(buf[:n])
		}
		if err != nil {
			r.logReadEnd(err)
			return
		}
	}
}

func (r *connReader) parse(segment []byte) {
	err := r.parser.Parse(segment)
	switch {
	case err == nil:
	case errors.Is(err, errspkg.ErrMessageTooLarge):
		r.metrics.RecordParseError(ParseErrorOversized)
	default:
		r.metrics.RecordParseError(ParseErrorFraming)
	}
}

func (r *connReader) logReadEnd(err error) {
	if errors.Is(err, io.EOF) {
		r.logger.Info("Connection closed by peer", nil)
		return
	}
	if errors.Is(err, net.ErrClosed) {
		r.logger.Debug("Connection closed locally", nil)
		return
	}
	r.logger.Error("Failed to read from connection", err, nil)
}
