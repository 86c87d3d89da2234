package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metadatapkg "github.com/drblury/nanofix/internal/runtime/metadata"
	"github.com/drblury/nanofix/transport"
)

var brokers = []string{"localhost:9092"}

func stubFactories(t *testing.T, pub message.Publisher, pubErr error, sub message.Subscriber, subErr error) (*kafka.PublisherConfig, *kafka.SubscriberConfig) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory, SubscriberFactory = originalPub, originalSub
	})

	var pubCfg kafka.PublisherConfig
	var subCfg kafka.SubscriberConfig
	PublisherFactory = func(cfg kafka.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return pub, pubErr
	}
	SubscriberFactory = func(cfg kafka.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return sub, subErr
	}
	return &pubCfg, &subCfg
}

func TestRegister(t *testing.T) {
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, transport.KafkaCapabilities, caps)
	assert.True(t, caps.Replayable())
	assert.False(t, caps.Fits(2<<20))
}

func TestBuild(t *testing.T) {
	pub, sub := &mockPublisher{}, &mockSubscriber{}
	pubCfg, subCfg := stubFactories(t, pub, nil, sub, nil)

	tr, err := Build(context.Background(), transport.Settings{
		KafkaBrokers:       brokers,
		KafkaConsumerGroup: "desk-7",
	}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)
	assert.Equal(t, brokers, pubCfg.Brokers)
	assert.Equal(t, brokers, subCfg.Brokers)
	assert.Equal(t, "desk-7", subCfg.ConsumerGroup)
	assert.NotNil(t, pubCfg.Marshaler)
	assert.NotNil(t, subCfg.Unmarshaler)
}

func TestBuildDefaultsConsumerGroup(t *testing.T) {
	_, subCfg := stubFactories(t, &mockPublisher{}, nil, &mockSubscriber{}, nil)

	_, err := Build(context.Background(), transport.Settings{KafkaBrokers: brokers}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConsumerGroup, subCfg.ConsumerGroup)
}

func TestBuildErrors(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		stubFactories(t, nil, errors.New("no brokers reachable"), &mockSubscriber{}, nil)
		_, err := Build(context.Background(), transport.Settings{KafkaBrokers: brokers}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "no brokers reachable")
	})

	t.Run("subscriber closes publisher", func(t *testing.T) {
		pub := &mockPublisher{}
		stubFactories(t, pub, nil, nil, errors.New("group coordinator unavailable"))
		_, err := Build(context.Background(), transport.Settings{KafkaBrokers: brokers}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "group coordinator unavailable")
		assert.True(t, pub.closed)
	})
}

func TestPartitionKey(t *testing.T) {
	session := message.NewMessage("01HX", nil)
	session.Metadata.Set(metadatapkg.KeyConnectionID, "conn_01HX")
	key, err := PartitionKey("fix.inbound", session)
	require.NoError(t, err)
	assert.Equal(t, "conn_01HX", key)

	key, err = PartitionKey("fix.inject", message.NewMessage("01HY", nil))
	require.NoError(t, err)
	assert.Equal(t, "fix.inject", key)
}

type mockPublisher struct{ closed bool }

func (m *mockPublisher) Publish(string, ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                              { m.closed = true; return nil }

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (m *mockSubscriber) Close() error { return nil }
