// Package nanofix is a small FIX client built around a plain TCP socket.
// It frames the byte stream into FIX messages, decodes their tag=value
// fields, and coordinates the connection lifecycle so that exactly one
// reader runs per connection and every closure is broadcast once.
//
// A Client is created from a Config and a ServiceLogger. It either dials out
// (Connect, ConnectTimeout) or accepts one peer at a time (Listen, with
// StayListening to take the next peer after a disconnect). Inbound messages
// reach every handler passed to SubscribeToAllMessages; outbound messages
// are built with NewBuilder and written with Send. Session semantics such as
// sequence numbers, heartbeats, and resend handling are left to the caller.
//
// # Message Tap
//
// With TapEnabled every message sent or received is mirrored as a JSON
// TapRecord onto a Watermill pub/sub system selected by PubSubSystem:
//   - channel: In-memory Go channels for testing
//   - kafka: Ordered, retained records for audit trails
//   - rabbitmq: Durable AMQP exchanges
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: Fire-and-forget NATS Core
//   - nats-jetstream: Durable stream for session replay
//   - http: POST records to a collector
//   - io: JSON lines in a local file
//
// With TapInjectTopic set, payloads published on that topic are sent on the
// FIX connection. Client.Start runs the inject router and the /metrics
// endpoint.
//
// # Middleware
//
// The inject router runs correlation ID injection, debug logging,
// OpenTelemetry tracing, Prometheus metrics, retry while disconnected, and
// panic recovery. InjectHooksMiddleware adds callbacks around every inject.
package nanofix
