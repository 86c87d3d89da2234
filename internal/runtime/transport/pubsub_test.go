package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/nanofix/internal/runtime/config"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/logging"
	tapbus "github.com/drblury/nanofix/transport"
)

func testWatermillLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func TestDefaultPubSubFactoryBuildsChannel(t *testing.T) {
	ps, err := DefaultPubSubFactory().Build(context.Background(), &config.Config{PubSubSystem: "channel"}, testWatermillLogger())

	require.NoError(t, err)
	assert.NotNil(t, ps.Publisher)
	assert.NotNil(t, ps.Subscriber)
	require.NoError(t, ps.Publisher.Close())
}

func TestDefaultPubSubFactoryNilConfig(t *testing.T) {
	_, err := DefaultPubSubFactory().Build(context.Background(), nil, testWatermillLogger())
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)
}

func TestDefaultPubSubFactoryUnknownTransport(t *testing.T) {
	_, err := DefaultPubSubFactory().Build(context.Background(), &config.Config{PubSubSystem: "carrier-pigeon"}, testWatermillLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"carrier-pigeon"`)
}

type sizedPublisher struct {
	message.Publisher
	limit int64
}

func (p sizedPublisher) Capabilities() tapbus.Capabilities {
	return tapbus.Capabilities{MaxMessageSize: p.limit}
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities(&config.Config{PubSubSystem: "channel"}, PubSub{})
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.CanInject())

	sized := Capabilities(&config.Config{PubSubSystem: "channel"}, PubSub{Publisher: sizedPublisher{limit: 4096}})
	assert.Equal(t, "channel", sized.Name)
	assert.Equal(t, int64(4096), sized.MaxMessageSize)
	assert.False(t, sized.CanInject())
}
