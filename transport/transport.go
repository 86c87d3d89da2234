// Package transport defines the pub/sub backends the nanofix message tap can
// publish to and inject from. Each backend lives in its own sub-package and
// registers a Builder with the registry under its PubSubSystem name.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport is what a backend hands the tap: a publisher for inbound and
// outbound records and, for backends that can inject, a subscriber for the
// inject topic.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Injects reports whether the transport can feed the inject topic.
func (t Transport) Injects() bool {
	return t.Subscriber != nil
}

// Close closes whichever halves are set.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

// Capabilities returns what the publisher reports about itself when it is a
// CapabilitiesProvider, and registered otherwise.
func (t Transport) Capabilities(registered Capabilities) Capabilities {
	if p, ok := t.Publisher.(CapabilitiesProvider); ok {
		caps := p.Capabilities()
		if caps.Name == "" {
			caps.Name = registered.Name
		}
		return caps
	}
	return registered
}

// Builder opens a backend from cfg. Builders do not block on broker
// availability beyond what the backend's client does on connect.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config is the slice of client configuration the backends read. Both the
// client Config and Settings implement it.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
	GetJetStreamStream() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by publishers or subscribers that know
// their own limits, overriding what the registry recorded for the name.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
