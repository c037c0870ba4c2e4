package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrConnectionClosed = errors.New("connection closed by peer")
	ErrNotOpen          = errors.New("transport is not open")
	ErrAlreadyClosed    = errors.New("transport already closed")
	ErrLineTooLong      = errors.New("line exceeds maximum length")
	ErrInvalidCommand   = errors.New("command must be a single line of valid UTF-8")
)

// ConnectError is returned by Dial when the device cannot be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError represents a failure on an established connection.
type TransportError struct {
	Op  string // "read", "send" or "close"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a delimited segment that is not valid UTF-8.
// The segment is dropped; later messages are still delivered.
type DecodeError struct {
	Raw []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed UTF-8 in %d byte message", len(e.Raw))
}

// IsConnectionClosed returns true if the error reports the peer hanging up.
func IsConnectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// IsDecode returns true if the error is a DecodeError.
func IsDecode(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsFatal returns true if the error ends the transport's life.
func IsFatal(err error) bool {
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return false
	}
	return transportErr.Op == "read" && !errors.Is(err, ErrLineTooLong)
}
