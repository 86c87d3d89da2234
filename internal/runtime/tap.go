package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
	"github.com/drblury/nanofix/internal/runtime/tags"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
)

// messageTap mirrors FIX traffic onto the configured pub/sub topics. A nil
// *messageTap is valid and drops everything.
type messageTap struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	inboundTopic  string
	outboundTopic string
	injectTopic   string

	// maxRecordSize is the backend's record limit, 0 when unknown.
	maxRecordSize int64

	logger loggingpkg.ServiceLogger
}

func newMessageTap(pubsub transportpkg.PubSub, inbound, outbound, inject string, logger loggingpkg.ServiceLogger) *messageTap {
	return &messageTap{
		publisher:     pubsub.Publisher,
		subscriber:    pubsub.Subscriber,
		inboundTopic:  inbound,
		outboundTopic: outbound,
		injectTopic:   inject,
		logger:        logger,
	}
}

func (t *messageTap) inbound(ctx context.Context, connectionID string, raw []byte, decoded *messagepkg.Message) {
	if t == nil {
		return
	}
	t.publish(ctx, t.inboundTopic, NewTapRecord(directionInbound, connectionID, raw, decoded))
}

func (t *messageTap) outbound(ctx context.Context, connectionID string, raw []byte) {
	if t == nil {
		return
	}
	t.publish(ctx, t.outboundTopic, NewTapRecord(directionOutbound, connectionID, raw, nil))
}

// publish never fails the FIX path; tap errors are only logged.
func (t *messageTap) publish(ctx context.Context, topic string, record TapRecord) {
	if err := publishTapRecord(ctx, t.publisher, topic, record, nil, t.maxRecordSize); err != nil {
		t.logger.Error("Failed to publish tap record", err, loggingpkg.LogFields{
			"topic":     topic,
			"direction": record.Direction,
			"msg_type":  record.MsgType,
		})
	}
}

func (t *messageTap) close() error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.publisher != nil {
		errs = append(errs, t.publisher.Close())
	}
	if t.subscriber != nil {
		errs = append(errs, t.subscriber.Close())
	}
	return errors.Join(errs...)
}

// DecodeInjectPayload turns an inject topic payload into wire bytes. It
// accepts raw FIX, a '|' separated rendering, or a JSON TapRecord.
func DecodeInjectPayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty inject payload", errspkg.ErrParse)
	}

	if jsoncodec.IsObject(trimmed) {
		var record TapRecord
		if err := jsoncodec.DecodeObject(trimmed, &record); err != nil {
			return nil, fmt.Errorf("%w: decode tap record: %w", errspkg.ErrParse, err)
		}
		if record.Raw == "" {
			return nil, fmt.Errorf("%w: tap record has no raw message", errspkg.ErrParse)
		}
		trimmed = []byte(record.Raw)
	}

	if bytes.IndexByte(trimmed, tags.SOH) >= 0 {
		return bytes.Clone(trimmed), nil
	}
	return bytes.ReplaceAll(trimmed, []byte{'|'}, []byte{tags.SOH}), nil
}
