package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	idspkg "github.com/drblury/nanofix/internal/runtime/ids"
	"github.com/drblury/nanofix/internal/runtime/jsoncodec"
	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
	metadatapkg "github.com/drblury/nanofix/internal/runtime/metadata"
	"github.com/drblury/nanofix/internal/runtime/tags"
)

const (
	directionInbound  = metadatapkg.DirectionInbound
	directionOutbound = metadatapkg.DirectionOutbound
)

// TapRecord is the JSON payload mirrored onto the tap topics for every FIX
// message sent or received.
type TapRecord struct {
	Direction    string             `json:"direction"`
	ConnectionID string             `json:"connection_id,omitempty"`
	MsgType      string             `json:"msg_type,omitempty"`
	Fields       []messagepkg.Field `json:"fields,omitempty"`
	// Raw is the message with '|' separators.
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTapRecord builds a record from raw bytes. decoded may be nil, in which
// case the raw bytes are decoded leniently for the field list.
func NewTapRecord(direction, connectionID string, raw []byte, decoded *messagepkg.Message) TapRecord {
	if decoded == nil {
		decoded, _ = messagepkg.Parse(raw)
	}
	record := TapRecord{
		Direction:    direction,
		ConnectionID: connectionID,
		Raw:          tags.Printable(raw),
		Timestamp:    time.Now().UTC(),
	}
	if decoded != nil {
		record.MsgType = decoded.MsgType()
		record.Fields = decoded.Fields()
	}
	return record
}

// NewTapMessage converts the record into a Watermill message carrying the
// standard tap metadata.
func NewTapMessage(record TapRecord, metadata metadatapkg.Metadata) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tap record: %w", err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(metadata.WithAll(
		metadatapkg.ForFields(record.Direction, record.ConnectionID, record.Fields),
	))
	return msg, nil
}

// PublishTap marshals the record and publishes it to topic. The span context
// of ctx, if any, is stamped on the metadata.
func PublishTap(ctx context.Context, publisher message.Publisher, topic string, record TapRecord, metadata metadatapkg.Metadata) error {
	return publishTapRecord(ctx, publisher, topic, record, metadata, 0)
}

// publishTapRecord is PublishTap with a payload limit; limit <= 0 means none.
func publishTapRecord(ctx context.Context, publisher message.Publisher, topic string, record TapRecord, metadata metadatapkg.Metadata, limit int64) error {
	if publisher == nil {
		return errspkg.ErrTapPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTapTopicRequired
	}

	msg, err := NewTapMessage(record, metadata)
	if err != nil {
		return err
	}
	if limit > 0 && int64(len(msg.Payload)) > limit {
		return fmt.Errorf("%w: tap record is %d bytes, transport accepts %d", errspkg.ErrMessageTooLarge, len(msg.Payload), limit)
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			msg.Metadata[metadatapkg.KeyTraceID] = sc.TraceID().String()
			msg.Metadata[metadatapkg.KeySpanID] = sc.SpanID().String()
		}
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}
