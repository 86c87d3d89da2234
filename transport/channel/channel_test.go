package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/nanofix/transport"
)

func TestRegister(t *testing.T) {
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, transport.ChannelCapabilities, caps)
	assert.True(t, caps.CanInject())
	assert.False(t, caps.Replayable())
}

func TestBuildUsesBufferedBus(t *testing.T) {
	originalFactory := Factory
	defer func() { Factory = originalFactory }()

	var got gochannel.Config
	Factory = func(cfg gochannel.Config, _ watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return sharedPublisher{}, sharedSubscriber{}
	}

	_, err := Build(context.Background(), transport.Settings{}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, int64(OutputBuffer), got.OutputChannelBuffer)
	assert.False(t, got.BlockPublishUntilSubscriberAck)
}

func TestTapRecordsReachBus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	records, err := Bus().Subscribe(ctx, "fix.inbound.bus-test")
	require.NoError(t, err)

	tr, err := Build(ctx, transport.Settings{PubSubSystem: TransportName}, watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, tr.Publisher.Publish("fix.inbound.bus-test", message.NewMessage("01HX", []byte(`{"msg_type":"0"}`))))

	select {
	case msg := <-records:
		assert.Equal(t, "01HX", msg.UUID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("tap record never reached the bus")
	}
}

func TestCloseLeavesBusOpen(t *testing.T) {
	first, err := Build(context.Background(), transport.Settings{}, nil)
	require.NoError(t, err)
	require.NoError(t, first.Publisher.Close())
	require.NoError(t, first.Subscriber.Close())

	second, err := Build(context.Background(), transport.Settings{}, nil)
	require.NoError(t, err)
	assert.NoError(t, second.Publisher.Publish("fix.outbound.nobody", message.NewMessage("01HY", []byte("{}"))))
}

func TestInjectThroughBus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := Build(ctx, transport.Settings{}, watermill.NopLogger{})
	require.NoError(t, err)
	injected, err := tr.Subscriber.Subscribe(ctx, "fix.inject.bus-test")
	require.NoError(t, err)

	require.NoError(t, Bus().Publish("fix.inject.bus-test", message.NewMessage("01HZ", []byte("8=FIX.4.2|35=0|"))))

	select {
	case msg := <-injected:
		assert.Equal(t, "8=FIX.4.2|35=0|", string(msg.Payload))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("inject payload never arrived")
	}
}
