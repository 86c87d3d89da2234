package runtime

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/nanofix/internal/runtime/config"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
)

func TestDefaultMiddlewaresOrder(t *testing.T) {
	var names []string
	for _, reg := range DefaultMiddlewares() {
		names = append(names, reg.Name)
	}
	assert.Equal(t, []string{"correlation_id", "log_messages", "tracer", "metrics", "retry", "recoverer"}, names)
}

func TestRetryMiddlewareConfigDefaults(t *testing.T) {
	cfg := RetryMiddlewareConfig{}.withDefaults()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialInterval)
	assert.Equal(t, 16*time.Second, cfg.MaxInterval)
	require.NotNil(t, cfg.RetryIf)

	custom := RetryMiddlewareConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}.withDefaults()
	assert.Equal(t, 2, custom.MaxRetries)
	assert.Equal(t, time.Millisecond, custom.InitialInterval)
}

func TestRetryWhileDisconnected(t *testing.T) {
	assert.True(t, retryWhileDisconnected(errspkg.ErrNotConnected))
	assert.True(t, retryWhileDisconnected(&errspkg.TransportClosedError{Err: errors.New("broken pipe")}))
	assert.False(t, retryWhileDisconnected(errspkg.ErrParse))
	assert.False(t, retryWhileDisconnected(errors.New("other")))
}

func TestRetryMiddlewareRetriesOnlyDisconnects(t *testing.T) {
	mw := retryMiddlewareWithConfig(RetryMiddlewareConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}, watermill.NopLogger{})

	attempts := 0
	_, err := mw(func(*message.Message) ([]*message.Message, error) {
		attempts++
		return nil, errspkg.ErrNotConnected
	})(message.NewMessage("1", nil))
	assert.ErrorIs(t, err, errspkg.ErrNotConnected)
	assert.Greater(t, attempts, 1)

	attempts = 0
	_, err = mw(func(*message.Message) ([]*message.Message, error) {
		attempts++
		return nil, errspkg.ErrParse
	})(message.NewMessage("2", nil))
	assert.ErrorIs(t, err, errspkg.ErrParse)
	assert.Equal(t, 1, attempts)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware()(func(msg *message.Message) ([]*message.Message, error) {
		seen = msg.Metadata.Get("correlation_id")
		return nil, nil
	})

	_, err := handler(message.NewMessage("1", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)

	msg := message.NewMessage("2", nil)
	msg.Metadata.Set("correlation_id", "keep-me")
	_, err = handler(msg)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", seen)
}

func TestTracerMiddlewareSetsContext(t *testing.T) {
	handler := tracerMiddleware()(func(msg *message.Message) ([]*message.Message, error) {
		assert.NotNil(t, msg.Context())
		return nil, nil
	})
	_, err := handler(message.NewMessage("1", nil))
	assert.NoError(t, err)
}

func TestRegisterMiddlewareRequiresMiddlewareOrBuilder(t *testing.T) {
	c := newTestClient(t, tapConfig("fix.inject"), ClientDependencies{
		PubSubFactory: &staticPubSubFactory{pubsub: newGoChannel()},
	})
	err := c.RegisterMiddleware(MiddlewareRegistration{Name: "empty"})
	assert.Error(t, err)

	built := false
	require.NoError(t, c.RegisterMiddleware(MiddlewareRegistration{
		Name: "custom",
		Builder: func(*Client) (message.HandlerMiddleware, error) {
			built = true
			return nil, nil
		},
	}))
	assert.True(t, built)
}

func TestMiddlewareBuilderErrorFailsClient(t *testing.T) {
	cfg := configpkg.Default()
	tapConfig("fix.inject")(&cfg)
	boom := errors.New("boom")
	_, err := NewClient(t.Context(), &cfg, newTestLogger(), ClientDependencies{
		PubSubFactory: &staticPubSubFactory{pubsub: newGoChannel()},
		Middlewares: []MiddlewareRegistration{{
			Builder: func(*Client) (message.HandlerMiddleware, error) { return nil, boom },
		}},
		Registerer: prometheus.NewRegistry(),
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "anonymous_middleware")
}

func TestMetricsMiddlewareUsesClientRegisterer(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := newTestClient(t, func(cfg *configpkg.Config) {
		tapConfig("fix.inject")(cfg)
		cfg.MetricsEnabled = true
	}, ClientDependencies{
		PubSubFactory: &staticPubSubFactory{pubsub: newGoChannel()},
		Registerer:    registry,
	})
	require.NotNil(t, c.router)

	c.Metrics().RecordSent(10)
	families, err := registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "nanofix_client_messages_total")
}

func TestLogMessagesMiddlewareMasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	handler := logMessagesMiddleware(logger)(func(*message.Message) ([]*message.Message, error) {
		return nil, nil
	})
	_, err := handler(message.NewMessage("1", []byte("8=FIX.4.4|35=A|553=trader|554=s3cret|10=000|")))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "554=***")
	assert.NotContains(t, buf.String(), "s3cret")
}
