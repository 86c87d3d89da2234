// Package channel provides an in-process tap transport. Every client built
// with it publishes onto one shared GoChannel, reachable through Bus, so code
// embedding the client can read tap topics and feed the inject topic.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/nanofix/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// OutputBuffer is the per-subscriber buffer. A slow tap consumer must not
// stall the FIX reader that publishes into it.
const OutputBuffer = 256

var (
	busOnce sync.Once
	bus     *gochannel.GoChannel
)

// Factory returns the publisher and subscriber handed to the client. The
// default shares Bus and ignores Close, since other clients may still use it.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	shared := sharedBus(cfg, logger)
	return sharedPublisher{shared}, sharedSubscriber{shared}
}

// Register registers the channel transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build hands out the process-wide bus.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(busConfig(), logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Bus returns the GoChannel shared by every channel tap in this process.
func Bus() *gochannel.GoChannel {
	return sharedBus(busConfig(), watermill.NopLogger{})
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

func busConfig() gochannel.Config {
	return gochannel.Config{OutputChannelBuffer: OutputBuffer}
}

// sharedBus creates the bus on first use; later configs and loggers are ignored.
func sharedBus(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	busOnce.Do(func() {
		if logger == nil {
			logger = watermill.NopLogger{}
		}
		bus = gochannel.NewGoChannel(cfg, logger)
	})
	return bus
}

type sharedPublisher struct{ *gochannel.GoChannel }

func (sharedPublisher) Close() error { return nil }

type sharedSubscriber struct{ *gochannel.GoChannel }

func (sharedSubscriber) Close() error { return nil }
