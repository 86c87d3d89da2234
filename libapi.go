package nanofix

import (
	"context"
	"errors"

	runtimepkg "github.com/drblury/nanofix/internal/runtime"
	configpkg "github.com/drblury/nanofix/internal/runtime/config"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	"github.com/drblury/nanofix/internal/runtime/framing"
	idspkg "github.com/drblury/nanofix/internal/runtime/ids"
	jsoncodec "github.com/drblury/nanofix/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	messagepkg "github.com/drblury/nanofix/internal/runtime/message"
	metadatapkg "github.com/drblury/nanofix/internal/runtime/metadata"
	"github.com/drblury/nanofix/internal/runtime/outgoing"
	"github.com/drblury/nanofix/internal/runtime/tags"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
	tapbus "github.com/drblury/nanofix/transport"
)

type (
	Config             = configpkg.Config
	Client             = runtimepkg.Client
	ClientDependencies = runtimepkg.ClientDependencies
	MessageHandler     = runtimepkg.MessageHandler
	Metrics            = runtimepkg.Metrics
	MetricsSnapshot    = runtimepkg.MetricsSnapshot

	// Inbound messages
	Message      = messagepkg.Message
	Field        = messagepkg.Field
	StreamParser = framing.StreamParser
	FrameHandler = framing.Callback
	TagHandler   = tags.Handler
	TagParser    = tags.Parser
	TagError     = tags.ParseError

	// Outbound messages
	OutgoingMessage      = outgoing.Message
	Builder              = outgoing.Builder
	MsgType              = outgoing.MsgType
	EncryptMethod        = outgoing.EncryptMethod
	Side                 = outgoing.Side
	OrdType              = outgoing.OrdType
	BusinessRejectReason = outgoing.BusinessRejectReason
	SessionRejectReason  = outgoing.SessionRejectReason

	// Connection lifecycle
	TransportObserver      = transportpkg.Observer
	TransportState         = transportpkg.State
	SocketFactory          = transportpkg.SocketFactory
	PubSub                 = transportpkg.PubSub
	PubSubFactory          = transportpkg.PubSubFactory
	TapTransport           = tapbus.Transport
	TapBuilder             = tapbus.Builder
	TapConfig              = tapbus.Config
	TapRegistry            = tapbus.Registry
	TapCapabilities        = tapbus.Capabilities
	TapSettings            = tapbus.Settings
	TapRecord              = runtimepkg.TapRecord
	InjectContext          = runtimepkg.InjectContext
	InjectHooks            = runtimepkg.InjectHooks
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	RetryMiddlewareConfig = runtimepkg.RetryMiddlewareConfig

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
	TransportClosedError  = errspkg.TransportClosedError
)

var (
	NewClient      = runtimepkg.NewClient
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ParseConfig    = configpkg.Parse
	ValidateConfig = configpkg.ValidateConfig

	NewBuilder      = outgoing.NewBuilder
	FromBytes       = outgoing.FromBytes
	Checksum        = outgoing.Checksum
	FormatTimestamp = outgoing.FormatTimestamp

	NewStreamParser = framing.NewStreamParser
	NewTagParser    = tags.NewParser
	Printable       = tags.Printable
	ParseMessage    = messagepkg.Parse
	ParseHuman      = messagepkg.ParseHuman
	NewCollector    = messagepkg.NewCollector

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	InjectHooksMiddleware = runtimepkg.InjectHooksMiddleware
	LoggingInjectHooks    = runtimepkg.LoggingInjectHooks
	AlertingInjectHooks   = runtimepkg.AlertingInjectHooks

	NewTapRecord        = runtimepkg.NewTapRecord
	NewTapMessage       = runtimepkg.NewTapMessage
	PublishTap          = runtimepkg.PublishTap
	DecodeInjectPayload = runtimepkg.DecodeInjectPayload

	NewMetrics                = runtimepkg.NewMetrics
	NewAsyncTCPFactory        = transportpkg.NewAsyncTCPFactory
	DefaultPubSubFactory      = transportpkg.DefaultPubSubFactory
	DefaultTapRegistry        = tapbus.DefaultRegistry
	RegisterTapTransport      = tapbus.RegisterWithCapabilities
	BuildTapTransport         = tapbus.Build
	GetTapCapabilities        = tapbus.GetCapabilities
	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	RedactingLogger           = loggingpkg.Redacting
	RedactFIX                 = loggingpkg.RedactFIX
	NewMetadata               = metadatapkg.New
	CreateULID                = idspkg.CreateULID
	NewConnectionID           = idspkg.NewConnectionID

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrNotConnected         = errspkg.ErrNotConnected
	ErrTransportClosed      = errspkg.ErrTransportClosed
	ErrConnectFailed        = errspkg.ErrConnectFailed
	ErrConnectTimeout       = errspkg.ErrConnectTimeout
	ErrBind                 = errspkg.ErrBind
	ErrAlreadyListening     = errspkg.ErrAlreadyListening
	ErrNoAddress            = errspkg.ErrNoAddress
	ErrMessageTooLarge      = errspkg.ErrMessageTooLarge
	ErrParserState          = errspkg.ErrParserState
	ErrParse                = errspkg.ErrParse
	ErrTapDisabled          = errspkg.ErrTapDisabled
	ErrTapTopicRequired     = errspkg.ErrTapTopicRequired
	ErrTapPublisherRequired = errspkg.ErrTapPublisherRequired
)

// Wire constants.
const (
	SOH = tags.SOH

	TagBeginString  = messagepkg.TagBeginString
	TagMsgType      = messagepkg.TagMsgType
	TagSenderCompID = messagepkg.TagSenderCompID
	TagTargetCompID = messagepkg.TagTargetCompID

	MsgTypeBusinessMessageReject = outgoing.MsgTypeBusinessMessageReject
	MsgTypeExecutionReport       = outgoing.MsgTypeExecutionReport
	MsgTypeLogon                 = outgoing.MsgTypeLogon
	MsgTypeLogout                = outgoing.MsgTypeLogout
	MsgTypeMarketDataSnapshot    = outgoing.MsgTypeMarketDataSnapshot
	MsgTypeNewOrderSingle        = outgoing.MsgTypeNewOrderSingle
	MsgTypeReject                = outgoing.MsgTypeReject
	MsgTypeResendRequest         = outgoing.MsgTypeResendRequest
	MsgTypeTestRequest           = outgoing.MsgTypeTestRequest

	EncryptNone = outgoing.EncryptNone

	SideBuy  = outgoing.SideBuy
	SideSell = outgoing.SideSell

	OrdTypeMarket    = outgoing.OrdTypeMarket
	OrdTypeLimit     = outgoing.OrdTypeLimit
	OrdTypeStop      = outgoing.OrdTypeStop
	OrdTypeStopLimit = outgoing.OrdTypeStopLimit
)

// Connection states reported by Client.State.
const (
	StateIdle            = transportpkg.StateIdle
	StateAwaitingChannel = transportpkg.StateAwaitingChannel
	StateEstablished     = transportpkg.StateEstablished
	StateClosed          = transportpkg.StateClosed
)

// Parse error kinds counted in MetricsSnapshot.ParseErrors.
const (
	ParseErrorFraming   = runtimepkg.ParseErrorFraming
	ParseErrorOversized = runtimepkg.ParseErrorOversized
	ParseErrorTag       = runtimepkg.ParseErrorTag
)

// Metadata keys stamped on tap messages.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyDirection     = metadatapkg.KeyDirection
	MetadataKeyConnectionID  = metadatapkg.KeyConnectionID
	MetadataKeyMsgType       = metadatapkg.KeyMsgType
	MetadataKeyTraceID       = metadatapkg.KeyTraceID
	MetadataKeySpanID        = metadatapkg.KeySpanID
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// Dial creates a client for conf and connects it. The client is shut down
// again when the connection cannot be established before ctx is done.
func Dial(ctx context.Context, conf *Config, logger ServiceLogger, deps ClientDependencies) (*Client, error) {
	client, err := NewClient(ctx, conf, logger, deps)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, errors.Join(err, client.Shutdown())
	}
	return client, nil
}
