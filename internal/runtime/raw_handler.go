package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
	"github.com/drblury/nanofix/internal/runtime/tags"
)

const tracerName = "github.com/drblury/nanofix"

// rawMessageHandler receives framed messages from the stream parser of one
// connection, decodes them strictly and hands them to the subscribers and
// the tap. It is owned by that connection's reader goroutine.
type rawMessageHandler struct {
	connectionID string
	subscribers  *messageSubscribers
	tap          *messageTap
	metrics      *Metrics
	logger       loggingpkg.ServiceLogger

	parser  *tags.Parser
	decoded *messagepkg.Message
}

func newRawMessageHandler(connectionID string, subscribers *messageSubscribers, tap *messageTap, metrics *Metrics, logger loggingpkg.ServiceLogger) *rawMessageHandler {
	h := &rawMessageHandler{
		connectionID: connectionID,
		subscribers:  subscribers,
		tap:          tap,
		metrics:      metrics,
		logger:       logger,
	}
	h.parser = tags.NewParser(messagepkg.NewCollector(func(m *messagepkg.Message) { h.decoded = m }))
	return h
}

func (h *rawMessageHandler) OnMessage(raw []byte) {
	h.metrics.RecordReceived(len(raw))

	h.decoded = nil
	if _, err := h.parser.Parse(raw, true); err != nil {
		h.metrics.RecordParseError(ParseErrorTag)
		h.logger.Error("Failed to decode message", err, nil)
		return
	}
	msg := h.decoded
	h.decoded = nil
	if msg == nil {
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(context.Background(), "fix.receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("fix.msg_type", msg.MsgType()),
			attribute.String("fix.connection_id", h.connectionID),
			attribute.Int("fix.size", len(raw)),
		),
	)
	defer span.End()

	h.tap.inbound(ctx, h.connectionID, raw, msg)
	h.subscribers.deliver(msg)
}

func (h *rawMessageHandler) OnTruncatedMessage() {
	h.metrics.RecordTruncated()
	h.logger.Info("Truncated message received, next message exceeded the fragment buffer", nil)
}

func (h *rawMessageHandler) OnParseError(reason string) {
	h.logger.Error("Failed to frame inbound stream", nil, loggingpkg.LogFields{"reason": reason})
}
