package logging

import (
	"strconv"
	"strings"
)

const redacted = "***"

// sensitiveTags are RawData, Password and NewPassword. Logon messages carry
// credentials in them.
var sensitiveTags = map[int]struct{}{
	96:  {},
	554: {},
	925: {},
}

// RedactFIX masks the values of credential carrying tags in a FIX message
// rendered with SOH or '|' separators. Fields that do not parse as
// tag=value are left alone.
func RedactFIX(msg string) string {
	if !strings.Contains(msg, "=") {
		return msg
	}

	var sb strings.Builder
	sb.Grow(len(msg))
	start := 0
	for i := 0; i <= len(msg); i++ {
		if i < len(msg) && msg[i] != '\x01' && msg[i] != '|' {
			continue
		}
		sb.WriteString(redactField(msg[start:i]))
		if i < len(msg) {
			sb.WriteByte(msg[i])
		}
		start = i + 1
	}
	return sb.String()
}

func redactField(field string) string {
	tag, _, ok := strings.Cut(field, "=")
	if !ok {
		return field
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return field
	}
	if _, sensitive := sensitiveTags[n]; !sensitive {
		return field
	}
	return tag + "=" + redacted
}

// ForConnection scopes log to one FIX connection.
func ForConnection(log ServiceLogger, connectionID string, inbound bool) ServiceLogger {
	direction := "outbound"
	if inbound {
		direction = "inbound"
	}
	return log.With(LogFields{
		"connection_id": connectionID,
		"connection":    direction,
	})
}

// Redacting returns a logger that passes every string, []byte and error it
// logs through RedactFIX.
func Redacting(log ServiceLogger) ServiceLogger {
	if r, ok := log.(redactingLogger); ok {
		return r
	}
	return redactingLogger{base: log}
}

type redactingLogger struct {
	base ServiceLogger
}

func (r redactingLogger) With(fields LogFields) ServiceLogger {
	return redactingLogger{base: r.base.With(redactFields(fields))}
}

func (r redactingLogger) Debug(msg string, fields LogFields) {
	r.base.Debug(msg, redactFields(fields))
}

func (r redactingLogger) Info(msg string, fields LogFields) {
	r.base.Info(msg, redactFields(fields))
}

func (r redactingLogger) Error(msg string, err error, fields LogFields) {
	r.base.Error(msg, redactError(err), redactFields(fields))
}

func (r redactingLogger) Trace(msg string, fields LogFields) {
	r.base.Trace(msg, redactFields(fields))
}

func redactFields(fields LogFields) LogFields {
	if len(fields) == 0 {
		return fields
	}
	out := make(LogFields, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = RedactFIX(val)
		case []byte:
			out[k] = RedactFIX(string(val))
		case error:
			out[k] = redactError(val)
		default:
			out[k] = v
		}
	}
	return out
}

// redactedError keeps the original chain reachable through Unwrap while
// printing the masked text.
type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }

func redactError(err error) error {
	if err == nil {
		return nil
	}
	text := err.Error()
	if masked := RedactFIX(text); masked != text {
		return redactedError{msg: masked, err: err}
	}
	return err
}
