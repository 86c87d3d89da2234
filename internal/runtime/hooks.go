package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	metadatapkg "github.com/drblury/nanofix/internal/runtime/metadata"
)

// InjectContext describes one attempt to send an inject topic payload.
type InjectContext struct {
	MessageUUID   string
	CorrelationID string
	Metadata      message.Metadata
	Context       context.Context
	StartedAt     time.Time
	// Duration is only set for OnInjectDone and OnInjectError.
	Duration time.Duration
}

// InjectHooks are optional callbacks around inject attempts. Registered after
// the default chain they run once per retry attempt.
type InjectHooks struct {
	OnInjectStart func(ctx InjectContext)
	OnInjectDone  func(ctx InjectContext)
	OnInjectError func(ctx InjectContext, err error)
}

// Merge returns hooks calling h first, then other.
func (h InjectHooks) Merge(other InjectHooks) InjectHooks {
	return InjectHooks{
		OnInjectStart: chainHooks(h.OnInjectStart, other.OnInjectStart),
		OnInjectDone:  chainHooks(h.OnInjectDone, other.OnInjectDone),
		OnInjectError: chainErrorHooks(h.OnInjectError, other.OnInjectError),
	}
}

func chainHooks(a, b func(InjectContext)) func(InjectContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx InjectContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(InjectContext, error)) func(InjectContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx InjectContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// InjectHooksMiddleware invokes hooks around every inject attempt.
func InjectHooksMiddleware(hooks InjectHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "inject_hooks",
		Middleware: injectHooksMiddleware(hooks),
	}
}

func injectHooksMiddleware(hooks InjectHooks) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			injectCtx := InjectContext{
				MessageUUID:   msg.UUID,
				CorrelationID: msg.Metadata.Get(metadatapkg.KeyCorrelationID),
				Metadata:      msg.Metadata,
				Context:       msg.Context(),
				StartedAt:     time.Now(),
			}

			if hooks.OnInjectStart != nil {
				hooks.OnInjectStart(injectCtx)
			}

			msgs, err := h(msg)
			injectCtx.Duration = time.Since(injectCtx.StartedAt)

			if err != nil {
				if hooks.OnInjectError != nil {
					hooks.OnInjectError(injectCtx, err)
				}
			} else if hooks.OnInjectDone != nil {
				hooks.OnInjectDone(injectCtx)
			}

			return msgs, err
		}
	}
}

// LoggingInjectHooks logs inject outcomes. Starts are logged at debug.
func LoggingInjectHooks(logger loggingpkg.ServiceLogger) InjectHooks {
	return InjectHooks{
		OnInjectStart: func(ctx InjectContext) {
			logger.Debug("Inject started", loggingpkg.LogFields{
				"message_uuid":   ctx.MessageUUID,
				"correlation_id": ctx.CorrelationID,
			})
		},
		OnInjectDone: func(ctx InjectContext) {
			logger.Info("Inject sent", loggingpkg.LogFields{
				"message_uuid":   ctx.MessageUUID,
				"correlation_id": ctx.CorrelationID,
				"duration_ms":    ctx.Duration.Milliseconds(),
			})
		},
		OnInjectError: func(ctx InjectContext, err error) {
			logger.Error("Inject failed", err, loggingpkg.LogFields{
				"message_uuid":   ctx.MessageUUID,
				"correlation_id": ctx.CorrelationID,
				"duration_ms":    ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingInjectHooks calls alert for every failed attempt.
func AlertingInjectHooks(alert func(ctx InjectContext, err error)) InjectHooks {
	return InjectHooks{OnInjectError: alert}
}
