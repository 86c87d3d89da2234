// Package http provides an HTTP transport for the nanofix message tap. Tap
// records are POSTed as JSON to HTTPPublisherURL joined with the topic. When
// HTTPServerAddress is set, inject payloads are accepted on /<topic>;
// otherwise the transport is publish-only.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/url"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/nanofix/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

// Register registers the HTTP transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	base := cfg.GetHTTPPublisherURL()

	publisher, err := PublisherFactory(http.PublisherConfig{
		MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
			return NewTapRequest(base, topic, msg)
		},
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	addr := cfg.GetHTTPServerAddress()
	if addr == "" {
		return transport.Transport{Publisher: publisher}, nil
	}

	subscriber, err := SubscriberFactory(addr, http.SubscriberConfig{
		UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: &injectServer{Subscriber: subscriber, logger: logger},
	}, nil
}

// NewTapRequest builds the POST carrying one tap record.
func NewTapRequest(base, topic string, msg *message.Message) (*nethttp.Request, error) {
	target, err := TopicURL(base, topic)
	if err != nil {
		return nil, err
	}
	req, err := http.DefaultMarshalMessageFunc(target, msg)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// TopicURL joins the publisher base URL and a topic, with or without a
// trailing slash on the base.
func TopicURL(base, topic string) (string, error) {
	return url.JoinPath(base, topic)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}

// serverStarter is implemented by the watermill HTTP subscriber.
type serverStarter interface {
	StartHTTPServer() error
}

// injectServer starts listening once the first route is registered, so the
// inject topic is never served as a 404.
type injectServer struct {
	message.Subscriber
	logger watermill.LoggerAdapter
	start  sync.Once
}

func (s *injectServer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	out, err := s.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	s.start.Do(func() {
		starter, ok := s.Subscriber.(serverStarter)
		if !ok {
			return
		}
		go func() {
			if err := starter.StartHTTPServer(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				s.logger.Error("Inject HTTP server stopped", err, nil)
			}
		}()
	})
	return out, nil
}
