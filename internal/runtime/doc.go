/*
Package runtime wires the FIX client together.

# Architecture Overview

A Client owns one TCPTransport. When a connection is established the
transport notifies its observers; the first observer is the reader
initializer, which starts exactly one reader goroutine for that connection
and opens the gate AwaitConnection waits on. The reader feeds every socket
read into a framing.StreamParser; each framed message is decoded by the
tags parser into a message.Message and handed to the subscribers.

Outbound messages are written directly on the current connection from the
caller's goroutine. A failed write closes the connection and broadcasts the
closure once.

# Package Structure

## Client (client.go)

NewClient validates the configuration and wires:
  - TCPTransport and the observer registry
  - reader initializer and reader loop (initializer.go, reader.go)
  - raw message handler (raw_handler.go)
  - outbound sender (sender.go)
  - Prometheus metrics (metrics.go)
  - optional message tap (tap.go, publisher.go)

## Message Tap (tap.go, publisher.go)

With TapEnabled every inbound and outbound message is published as a JSON
TapRecord on the tap topics of the configured pub/sub system. With
TapInjectTopic set, a Watermill router consumes that topic and sends every
payload on the FIX connection.

## Middleware (middleware.go, hooks.go)

The inject router runs the middleware chain:
  - CorrelationID: Ensures message traceability
  - LogMessages: Debug logging of injected payloads
  - Tracer: OpenTelemetry spans
  - Metrics: Watermill Prometheus router metrics
  - Retry: Backoff while the connection is down
  - Recoverer: Panic recovery

InjectHooksMiddleware adds user callbacks around every inject attempt.

# Subpackages

  - concurrent: re-armable connection gate and consumer blocker
  - config: configuration loading and validation
  - errors: sentinel errors and typed errors
  - framing: stream to message framing
  - ids: ULID generation
  - jsoncodec: JSON encoding
  - logging: logger abstraction
  - message: inbound message model
  - metadata: tap metadata keys
  - outgoing: outbound message builder
  - tags: tag/value parsing
  - transport: sockets, TCP lifecycle, observers and tap pub/sub
*/
package runtime
