package runtime

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
)

// outboundSender writes encoded messages on whatever connection is current.
type outboundSender struct {
	transport *transportpkg.TCPTransport
	tap       *messageTap
	metrics   *Metrics
	logger    loggingpkg.ServiceLogger
}

// send writes each payload in order and stops at the first failure.
func (s *outboundSender) send(ctx context.Context, payloads ...[]byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fix.send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.Int("fix.messages", len(payloads))),
	)
	defer span.End()

	for _, p := range payloads {
		conn := s.transport.Current()
		if err := s.transport.Write(p); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, errspkg.ErrTransportClosed) {
				s.metrics.RecordSendFailure()
				s.logger.Error("Failed to send message, connection closed", err, nil)
			}
			return err
		}
		s.metrics.RecordSent(len(p))

		var connectionID string
		if conn != nil {
			connectionID = conn.ID()
		}
		s.tap.outbound(ctx, connectionID, p)
	}
	return nil
}
