package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/nanofix/internal/runtime/concurrent"
	configpkg "github.com/drblury/nanofix/internal/runtime/config"
	errspkg "github.com/drblury/nanofix/internal/runtime/errors"
	loggingpkg "github.com/drblury/nanofix/internal/runtime/logging"
	"github.com/drblury/nanofix/internal/runtime/outgoing"
	transportpkg "github.com/drblury/nanofix/internal/runtime/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

const injectHandlerName = "nanofix_inject"

// ClientDependencies holds the optional collaborators of a Client. Leave
// fields nil for the defaults.
type ClientDependencies struct {
	SocketFactory transportpkg.SocketFactory
	PubSubFactory transportpkg.PubSubFactory
	// Registerer receives the client collectors. Defaults to the Prometheus
	// default registerer.
	Registerer prometheus.Registerer

	Middlewares               []MiddlewareRegistration // Appended after the default inject middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default inject middleware chain when true.
}

// Client is a FIX connection endpoint: it connects or listens, reads and
// decodes inbound messages on a dedicated goroutine and writes outbound
// messages from any goroutine.
type Client struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport   *transportpkg.TCPTransport
	observers   *transportpkg.PublishingObserver
	initializer *readerInitializer
	subscribers *messageSubscribers
	blocker     *concurrent.Blocker
	sender      *outboundSender

	metrics    *Metrics
	registerer prometheus.Registerer

	tap    *messageTap
	router *message.Router

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewClient validates conf and wires a Client. The tap transport, when
// enabled, is built with ctx.
func NewClient(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ClientDependencies) (*Client, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	log = loggingpkg.Redacting(log)
	normalized := conf.WithDefaults()
	if err := configpkg.ValidateConfig(&normalized); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating FIX client", loggingpkg.LogFields{
		"address": normalized.Address(),
		"config":  normalized,
	})

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &Client{
		Conf:        &normalized,
		Logger:      log,
		observers:   transportpkg.NewPublishingObserver(log),
		subscribers: newMessageSubscribers(log),
		blocker:     concurrent.NewBlocker(),
		metrics:     NewMetrics(registerer),
		registerer:  registerer,
	}

	if normalized.MetricsEnabled {
		if err := c.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register client metrics: %w", err)
		}
		if normalized.MetricsPort > 0 {
			c.RegisterHTTPHandler(normalized.MetricsPort, "/metrics", metricsHandler(registerer))
		}
	}

	if normalized.TapEnabled {
		if err := c.setupTap(ctx, deps); err != nil {
			return nil, err
		}
	}

	factory := deps.SocketFactory
	if factory == nil {
		factory = transportpkg.NewAsyncTCPFactory(log, normalized.AcceptWorkers, normalized.ConnectTimeout)
	}
	c.transport = transportpkg.NewTCPTransport(normalized.Address(), normalized.StayListening, factory, c.observers, log)

	c.initializer = &readerInitializer{
		transport:      c.transport,
		subscribers:    c.subscribers,
		tap:            c.tap,
		blocker:        c.blocker,
		metrics:        c.metrics,
		logger:         log,
		maxMessageSize: normalized.MaxMessageSize,
		readBufferSize: normalized.ReadBufferSize,
		gate:           concurrent.NewGate(),
	}
	c.observers.Register(c.initializer)

	c.sender = &outboundSender{
		transport: c.transport,
		tap:       c.tap,
		metrics:   c.metrics,
		logger:    log,
	}

	return c, nil
}

func (c *Client) setupTap(ctx context.Context, deps ClientDependencies) error {
	pubsubFactory := deps.PubSubFactory
	if pubsubFactory == nil {
		pubsubFactory = transportpkg.DefaultPubSubFactory()
	}
	pubsub, err := pubsubFactory.Build(ctx, c.Conf, c.wmLogger())
	if err != nil {
		return err
	}
	c.tap = newMessageTap(pubsub, c.Conf.TapInboundTopic, c.Conf.TapOutboundTopic, c.Conf.TapInjectTopic, c.Logger)

	caps := transportpkg.Capabilities(c.Conf, pubsub)
	c.tap.maxRecordSize = caps.MaxMessageSize
	c.Logger.Info("Message tap enabled", loggingpkg.LogFields{
		"pubsub_system": c.Conf.PubSubSystem,
		"replayable":    caps.Replayable(),
		"inject_topic":  c.Conf.TapInjectTopic,
	})

	if c.Conf.TapInjectTopic == "" {
		return nil
	}
	if pubsub.Subscriber == nil {
		return fmt.Errorf("tap inject topic %q needs a subscriber: %w", c.Conf.TapInjectTopic, errspkg.ErrTapDisabled)
	}

	router, err := message.NewRouter(message.RouterConfig{}, c.wmLogger())
	if err != nil {
		return err
	}
	c.router = router
	c.router.AddPlugin(plugin.SignalsHandler)

	if err := c.registerConfiguredMiddlewares(deps); err != nil {
		return err
	}
	c.router.AddNoPublisherHandler(injectHandlerName, c.Conf.TapInjectTopic, pubsub.Subscriber, c.handleInject)
	return nil
}

func (c *Client) registerConfiguredMiddlewares(deps ClientDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := c.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// handleInject sends one inject topic payload. Undecodable payloads are
// dropped so they are not redelivered forever.
func (c *Client) handleInject(msg *message.Message) error {
	raw, err := DecodeInjectPayload(msg.Payload)
	if err != nil {
		c.metrics.RecordParseError(ParseErrorTag)
		c.Logger.Error("Dropping undecodable inject payload", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
		return nil
	}
	return c.sender.send(msg.Context(), raw)
}

func (c *Client) wmLogger() watermill.LoggerAdapter {
	return loggingpkg.NewWatermillAdapter(c.Logger)
}

func metricsHandler(registerer prometheus.Registerer) http.Handler {
	if gatherer, ok := registerer.(prometheus.Gatherer); ok && registerer != prometheus.DefaultRegisterer {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Start serves the registered HTTP handlers and runs the tap inject router
// until ctx is cancelled. Without an inject topic it only waits on ctx.
func (c *Client) Start(ctx context.Context) error {
	c.startHTTPServers(ctx)
	if c.router == nil {
		<-ctx.Done()
		return nil
	}
	return routerRun(c.router, ctx)
}

// Connect dials the configured address and waits until the connection is
// established and every observer was notified.
func (c *Client) Connect(ctx context.Context) error {
	if c.Conf.Port == 0 {
		return errspkg.ErrNoAddress
	}
	select {
	case err := <-c.transport.Connect(ctx):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectTimeout is Connect bounded by d. Expiry returns ErrConnectTimeout.
func (c *Client) ConnectTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := c.Connect(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", errspkg.ErrConnectTimeout, d)
	}
	return err
}

// Listen binds synchronously and accepts asynchronously. Bind failures wrap
// ErrBind.
func (c *Client) Listen() error {
	return c.transport.Listen()
}

// ListenAddr is the bound address while listening, nil otherwise.
func (c *Client) ListenAddr() net.Addr {
	return c.transport.ListenAddr()
}

func (c *Client) StopListening() error {
	return c.transport.StopListening()
}

// KillSocket resets the connection without an orderly shutdown.
func (c *Client) KillSocket() error {
	return c.transport.KillSocket()
}

// Close closes the current connection. The client can connect or listen
// again afterwards.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Shutdown stops listening, closes the connection, resumes a paused
// consumer, waits for the reader to finish and closes the tap.
func (c *Client) Shutdown() error {
	errs := []error{
		c.transport.StopListening(),
		c.transport.Close(),
	}
	c.blocker.Resume()
	c.initializer.wait()
	errs = append(errs, c.tap.close())
	return errors.Join(errs...)
}

func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

func (c *Client) State() transportpkg.State {
	return c.transport.State()
}

// AwaitConnection blocks until a connection is established or ctx is done.
func (c *Client) AwaitConnection(ctx context.Context) error {
	return c.initializer.gate.Wait(ctx)
}

// AwaitConnectionTimeout reports whether a connection was established
// within d.
func (c *Client) AwaitConnectionTimeout(d time.Duration) bool {
	return c.initializer.gate.WaitTimeout(d)
}

// RegisterTransportObserver adds o. Observers run on the goroutine that
// detected the event and must not block.
func (c *Client) RegisterTransportObserver(o transportpkg.Observer) {
	c.observers.Register(o)
}

func (c *Client) UnregisterTransportObserver(o transportpkg.Observer) {
	c.observers.Unregister(o)
}

// SubscribeToAllMessages registers h for every decoded inbound message and
// returns a func that unsubscribes it.
func (c *Client) SubscribeToAllMessages(h MessageHandler) func() {
	return c.subscribers.subscribe(h)
}

// PauseMessageConsumer stops the reader before its next parse. Unread data
// stays in the socket buffers.
func (c *Client) PauseMessageConsumer() {
	c.blocker.Pause()
}

func (c *Client) ResumeMessageConsumer() {
	c.blocker.Resume()
}

// Send writes msgs in order on the current connection.
func (c *Client) Send(msgs ...outgoing.Message) error {
	return c.SendContext(context.Background(), msgs...)
}

// SendContext is Send with a parent context for tracing.
func (c *Client) SendContext(ctx context.Context, msgs ...outgoing.Message) error {
	payloads := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, m.Bytes())
	}
	return c.sender.send(ctx, payloads...)
}

// SendString writes s unchanged.
func (c *Client) SendString(s string) error {
	return c.sender.send(context.Background(), []byte(s))
}

// SendBytes writes b unchanged.
func (c *Client) SendBytes(b []byte) error {
	return c.sender.send(context.Background(), b)
}

// Metrics exposes the client counters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// RegisterHTTPHandler mounts handler on the server for port, started by Start.
func (c *Client) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	if c.httpServers == nil {
		c.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := c.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		c.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (c *Client) startHTTPServers(ctx context.Context) {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	for port, mux := range c.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		c.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
}
