package metadata

// Metadata keys stamped on tap messages.
const (
	// KeyDirection is "inbound" or "outbound".
	KeyDirection = "fix_direction"

	// KeyMsgType carries tag 35 when the message has one.
	KeyMsgType = "fix_msg_type"

	// KeyBeginString carries tag 8.
	KeyBeginString = "fix_begin_string"

	// KeySenderCompID and KeyTargetCompID carry tags 49 and 56.
	KeySenderCompID = "fix_sender_comp_id"
	KeyTargetCompID = "fix_target_comp_id"

	// KeyConnectionID groups records from one socket.
	KeyConnectionID = "fix_connection_id"

	// KeyCorrelationID tracks related messages across services.
	KeyCorrelationID = "correlation_id"

	// KeyTraceID and KeySpanID hold the active OpenTelemetry span context.
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)
