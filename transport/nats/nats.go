// Package nats provides a NATS Core transport for the nanofix message tap.
// Core NATS is fire-and-forget: mirrored records are lost when nobody is
// subscribed. Use the nats-jetstream transport for a replayable tap.
package nats

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/nanofix/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

const (
	// ConnectionName identifies the client in NATS server monitoring.
	ConnectionName = "nanofix"

	// InjectQueueGroup makes client instances split inject payloads instead
	// of each sending every one of them.
	InjectQueueGroup = "nanofix-inject"

	// ReconnectWait is the pause between reconnect attempts. The tap keeps
	// reconnecting for as long as the FIX session lives.
	ReconnectWait = 2 * time.Second
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

// Register registers the NATS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Options returns the connection options shared by publisher and subscriber.
func Options() []nc.Option {
	return []nc.Option{
		nc.Name(ConnectionName),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(ReconnectWait),
	}
}

// Build creates a new NATS transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}
	coreOnly := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(nats.PublisherConfig{
		URL:         url,
		NatsOptions: Options(),
		Marshaler:   marshaler,
		JetStream:   coreOnly,
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(nats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: InjectQueueGroup,
		NatsOptions:      Options(),
		Unmarshaler:      marshaler,
		JetStream:        coreOnly,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
