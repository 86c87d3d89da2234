package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/nanofix/internal/runtime/config"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	tapbus "github.com/drblury/nanofix/transport"

	// Register every tap transport.
	_ "github.com/drblury/nanofix/transport/transports"
)

// PubSub is the publisher/subscriber pair the message tap runs on.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// PubSubFactory abstracts how the tap pub/sub is created so tests can plug
// in an in-memory pair.
type PubSubFactory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (PubSub, error)
}

// DefaultPubSubFactory builds the transport named by Config.PubSubSystem from
// the tap transport registry.
func DefaultPubSubFactory() PubSubFactory {
	return registryFactory{}
}

type registryFactory struct{}

func (registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (PubSub, error) {
	if conf == nil {
		return PubSub{}, errspkg.ErrConfigRequired
	}

	t, err := tapbus.Build(ctx, conf, logger)
	if err != nil {
		return PubSub{}, fmt.Errorf("build tap transport %q: %w", conf.GetPubSubSystem(), err)
	}

	return PubSub{
		Publisher:  t.Publisher,
		Subscriber: t.Subscriber,
	}, nil
}

// Capabilities reports what the configured tap transport supports. A
// publisher that describes itself wins over the registered capabilities.
func Capabilities(conf *config.Config, ps PubSub) tapbus.Capabilities {
	registered := tapbus.GetCapabilities(conf.GetPubSubSystem())
	return tapbus.Transport{Publisher: ps.Publisher, Subscriber: ps.Subscriber}.Capabilities(registered)
}
