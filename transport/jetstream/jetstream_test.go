package jetstream

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/nanofix/transport"
)

func TestRegister(t *testing.T) {
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats-jetstream", caps.Name)
	assert.True(t, caps.Durable)
	assert.True(t, caps.Replayable())
	assert.True(t, caps.SupportsTracing)
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	assert.Equal(t, transport.NATSJetStreamCapabilities, caps)
	assert.Equal(t, "nats-jetstream", caps.Name)
}

func TestConfig_withDefaults(t *testing.T) {
	t.Run("empty config gets defaults", func(t *testing.T) {
		result := Config{}.withDefaults()

		assert.Equal(t, DefaultStreamName, result.StreamName)
		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
		assert.Equal(t, DefaultMaxAge, result.MaxAge)
		assert.Equal(t, 1, result.Replicas)
	})

	t.Run("custom values preserved", func(t *testing.T) {
		cfg := Config{
			URL:        "nats://localhost:4222",
			StreamName: "FIX",
			MaxDeliver: 5,
			AckWait:    time.Minute,
			MaxAge:     time.Hour,
			Replicas:   3,
		}
		assert.Equal(t, cfg, cfg.withDefaults())
	})

	t.Run("negative values get defaults", func(t *testing.T) {
		result := Config{MaxDeliver: -1, AckWait: -1, MaxAge: -1, Replicas: -1}.withDefaults()

		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
		assert.Equal(t, DefaultMaxAge, result.MaxAge)
		assert.Equal(t, 1, result.Replicas)
	})
}

func TestConfigNaming(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "NANOFIX.fix.inbound", cfg.Subject("fix.inbound"))
	assert.Equal(t, "nanofix_fix_inbound", cfg.Durable("fix.inbound"))
	assert.Equal(t, "nanofix_fix__", cfg.Durable("fix.>"))
}

func TestMessageConversion(t *testing.T) {
	msg := message.NewMessage("uuid-1", []byte(`{"raw":"8=FIX.4.4|"}`))
	msg.Metadata.Set("msg_type", "A")

	natsMsg := toNATS("NANOFIX.fix.outbound", msg)
	assert.Equal(t, "NANOFIX.fix.outbound", natsMsg.Subject)
	assert.Equal(t, "uuid-1", natsMsg.Header.Get(HeaderMessageID))
	assert.Equal(t, "uuid-1", natsMsg.Header.Get(nats.MsgIdHdr))

	back := fromNATS(natsMsg)
	assert.Equal(t, "uuid-1", back.UUID)
	assert.Equal(t, msg.Payload, back.Payload)
	assert.Equal(t, "A", back.Metadata.Get("msg_type"))
	assert.Empty(t, back.Metadata.Get(HeaderMessageID))
	assert.Empty(t, back.Metadata.Get(nats.MsgIdHdr))
}

func TestFromNATSWithoutID(t *testing.T) {
	msg := fromNATS(&nats.Msg{Data: []byte("x"), Header: nats.Header{}})
	require.NotEmpty(t, msg.UUID)
	assert.Equal(t, []byte("x"), []byte(msg.Payload))
}

func TestNewConnectError(t *testing.T) {
	_, err := New(Config{URL: "nats://127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
