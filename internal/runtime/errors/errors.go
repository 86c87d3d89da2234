package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired       = sterrors.New("nanofix: configuration is required")
	ErrLoggerRequired       = sterrors.New("nanofix: logger is required")
	ErrNotConnected         = sterrors.New("nanofix: no connection, is the socket open?")
	ErrTransportClosed      = sterrors.New("nanofix: transport closed")
	ErrConnectFailed        = sterrors.New("nanofix: connect failed")
	ErrConnectTimeout       = sterrors.New("nanofix: timed out waiting for connection")
	ErrBind                 = sterrors.New("nanofix: bind failed")
	ErrAlreadyListening     = sterrors.New("nanofix: already listening")
	ErrNoAddress            = sterrors.New("nanofix: no socket address configured")
	ErrMessageTooLarge      = sterrors.New("nanofix: message exceeds max message size")
	ErrParserState          = sterrors.New("nanofix: stream parser in invalid state")
	ErrParse                = sterrors.New("nanofix: malformed message")
	ErrTapDisabled          = sterrors.New("nanofix: message tap is not enabled")
	ErrTapTopicRequired     = sterrors.New("nanofix: tap topic is required")
	ErrTapPublisherRequired = sterrors.New("nanofix: tap publisher is required")
)

// ConfigValidationError reports an invalid Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("nanofix: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// TransportClosedError is returned to the sender when a write fails and the
// connection had to be torn down.
type TransportClosedError struct {
	Err error
}

func (e *TransportClosedError) Error() string {
	if e.Err == nil {
		return ErrTransportClosed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrTransportClosed.Error(), e.Err)
}

func (e *TransportClosedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransportClosed}
	}
	return []error{ErrTransportClosed, e.Err}
}
