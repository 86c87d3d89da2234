package transport

// Capabilities describes what a tap backend offers the FIX client.
type Capabilities struct {
	// Name is the PubSubSystem value the backend registers under.
	Name string

	// SupportsSubscribe is false for publish-only backends. Such a backend
	// can mirror traffic but cannot feed the inject topic.
	SupportsSubscribe bool

	// SupportsOrdering indicates tap records are delivered in publish order.
	SupportsOrdering bool

	// SupportsAck indicates the backend redelivers injected payloads the
	// client nacked.
	SupportsAck bool

	// SupportsTracing indicates message metadata is carried as headers, so
	// the trace_id and span_id stamps survive the hop.
	SupportsTracing bool

	// Durable indicates tap records survive a broker or client restart.
	Durable bool

	// MaxMessageSize is the largest tap record in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// CanInject reports whether the backend can drive the inject topic.
func (c Capabilities) CanInject() bool {
	return c.SupportsSubscribe
}

// Replayable reports whether a session can be reconstructed from the tap
// after the fact.
func (c Capabilities) Replayable() bool {
	return c.Durable && c.SupportsOrdering
}

// Fits reports whether a tap record of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Record limits of the brokers with a hard cap. A FIX session with large
// RawData or news text can exceed them; the tap then drops the record.
const (
	brokerDefaultLimit = 1 << 20   // Kafka message.max.bytes, NATS max_payload
	snsLimit           = 256 << 10 // SNS and SQS
)

// Capabilities of the built-in backends, keyed by the name each registers.
var (
	// ChannelCapabilities: in-process bus, gone with the process.
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		SupportsSubscribe: true,
		SupportsOrdering:  true,
		SupportsAck:       true,
		SupportsTracing:   true,
	}

	// KafkaCapabilities: records are keyed by connection id, so ordering
	// holds within one FIX session.
	KafkaCapabilities = Capabilities{
		Name:              "kafka",
		SupportsSubscribe: true,
		SupportsOrdering:  true,
		SupportsAck:       true,
		SupportsTracing:   true,
		Durable:           true,
		MaxMessageSize:    brokerDefaultLimit,
	}

	RabbitMQCapabilities = Capabilities{
		Name:              "rabbitmq",
		SupportsSubscribe: true,
		SupportsOrdering:  true,
		SupportsAck:       true,
		SupportsTracing:   true,
		Durable:           true,
	}

	// NATSCapabilities: fire and forget; a tap record published while no
	// one listens is lost.
	NATSCapabilities = Capabilities{
		Name:              "nats",
		SupportsSubscribe: true,
		SupportsTracing:   true,
		MaxMessageSize:    brokerDefaultLimit,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:              "nats-jetstream",
		SupportsSubscribe: true,
		SupportsOrdering:  true,
		SupportsAck:       true,
		SupportsTracing:   true,
		Durable:           true,
		MaxMessageSize:    brokerDefaultLimit,
	}

	// AWSCapabilities: standard SNS topics and SQS queues do not keep order.
	AWSCapabilities = Capabilities{
		Name:              "aws",
		SupportsSubscribe: true,
		SupportsAck:       true,
		SupportsTracing:   true,
		Durable:           true,
		MaxMessageSize:    snsLimit,
	}

	// HTTPCapabilities: each record is an independent POST.
	HTTPCapabilities = Capabilities{
		Name:              "http",
		SupportsSubscribe: true,
		SupportsTracing:   true,
	}

	// IOCapabilities: the journal keeps metadata and redelivers nacked
	// lines.
	IOCapabilities = Capabilities{
		Name:              "io",
		SupportsSubscribe: true,
		SupportsOrdering:  true,
		SupportsAck:       true,
		SupportsTracing:   true,
		Durable:           true,
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Returns Capabilities with only Name set if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
