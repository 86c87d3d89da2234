package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
)

func newInjectMessage() *message.Message {
	msg := message.NewMessage("test-uuid", []byte("8=FIX.4.2|9=5|35=0|10=000|"))
	msg.Metadata.Set("correlation_id", "corr-1")
	msg.SetContext(context.Background())
	return msg
}

func TestInjectHooks_OnInjectStart(t *testing.T) {
	var captured InjectContext
	called := false

	handler := injectHooksMiddleware(InjectHooks{
		OnInjectStart: func(ctx InjectContext) {
			called = true
			captured = ctx
		},
	})(func(msg *message.Message) ([]*message.Message, error) {
		return nil, nil
	})

	_, err := handler(newInjectMessage())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "test-uuid", captured.MessageUUID)
	assert.Equal(t, "corr-1", captured.CorrelationID)
	assert.False(t, captured.StartedAt.IsZero())
}

func TestInjectHooks_OnInjectDone(t *testing.T) {
	var captured InjectContext

	handler := injectHooksMiddleware(InjectHooks{
		OnInjectDone:  func(ctx InjectContext) { captured = ctx },
		OnInjectError: func(InjectContext, error) { t.Fatal("error hook called on success") },
	})(func(msg *message.Message) ([]*message.Message, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	})

	_, err := handler(newInjectMessage())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, captured.Duration, 5*time.Millisecond)
}

func TestInjectHooks_OnInjectError(t *testing.T) {
	boom := errors.New("boom")
	var got error

	handler := injectHooksMiddleware(InjectHooks{
		OnInjectDone:  func(InjectContext) { t.Fatal("done hook called on failure") },
		OnInjectError: func(_ InjectContext, err error) { got = err },
	})(func(msg *message.Message) ([]*message.Message, error) {
		return nil, boom
	})

	_, err := handler(newInjectMessage())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, got, boom)
}

func TestInjectHooks_Merge(t *testing.T) {
	var order []string
	first := InjectHooks{
		OnInjectStart: func(InjectContext) { order = append(order, "first-start") },
		OnInjectError: func(InjectContext, error) { order = append(order, "first-error") },
	}
	second := InjectHooks{
		OnInjectStart: func(InjectContext) { order = append(order, "second-start") },
		OnInjectDone:  func(InjectContext) { order = append(order, "second-done") },
	}

	merged := first.Merge(second)
	merged.OnInjectStart(InjectContext{})
	merged.OnInjectDone(InjectContext{})
	merged.OnInjectError(InjectContext{}, errors.New("x"))

	assert.Equal(t, []string{"first-start", "second-start", "second-done", "first-error"}, order)
}

func TestInjectHooks_MergeEmpty(t *testing.T) {
	merged := InjectHooks{}.Merge(InjectHooks{})
	assert.Nil(t, merged.OnInjectStart)
	assert.Nil(t, merged.OnInjectDone)
	assert.Nil(t, merged.OnInjectError)
}

func TestInjectHooksMiddleware_Registration(t *testing.T) {
	reg := InjectHooksMiddleware(InjectHooks{})
	assert.Equal(t, "inject_hooks", reg.Name)
	assert.NotNil(t, reg.Middleware)
	assert.Nil(t, reg.Builder)
}

func TestLoggingInjectHooks(t *testing.T) {
	hooks := LoggingInjectHooks(loggingpkg.NewNopServiceLogger())
	require.NotNil(t, hooks.OnInjectStart)
	require.NotNil(t, hooks.OnInjectDone)
	require.NotNil(t, hooks.OnInjectError)

	assert.NotPanics(t, func() {
		hooks.OnInjectStart(InjectContext{MessageUUID: "a"})
		hooks.OnInjectDone(InjectContext{MessageUUID: "a"})
		hooks.OnInjectError(InjectContext{MessageUUID: "a"}, errors.New("boom"))
	})
}

func TestAlertingInjectHooks(t *testing.T) {
	var alerted string
	hooks := AlertingInjectHooks(func(ctx InjectContext, err error) {
		alerted = ctx.MessageUUID + ": " + err.Error()
	})
	assert.Nil(t, hooks.OnInjectStart)
	hooks.OnInjectError(InjectContext{MessageUUID: "m1"}, errors.New("offline"))
	assert.Equal(t, "m1: offline", alerted)
}
