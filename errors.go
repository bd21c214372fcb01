package websocket

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation is not allowed in the
// current connection state, for example sending while CLOSED.
// It is always wrapped in a *StateError.
var ErrInvalidState = errors.New("invalid connection state")

// StateError reports an operation rejected because of the connection state.
// The connection itself is unaffected.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %v: connection is %v", e.Op, e.State)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// AddressError is returned for a URI that is not a valid WebSocket address.
// It is always returned before any I/O.
type AddressError struct {
	Addr string
	Err  error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid WebSocket address %q: %v", e.Addr, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// Handshake failure kinds. Use errors.Is to test for them.
var (
	ErrBadStatus  = errors.New("unexpected handshake response status")
	ErrBadUpgrade = errors.New("missing upgrade headers in handshake response")
	ErrBadAccept  = errors.New("invalid Sec-WebSocket-Accept")
)

// HandshakeError is returned when the opening handshake fails.
// Kind is one of ErrBadStatus, ErrBadUpgrade or ErrBadAccept, or nil when
// the handshake failed on I/O, in which case Err holds the cause.
type HandshakeError struct {
	Kind error
	// StatusCode is the HTTP status of the response, 0 if none was read.
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("WebSocket handshake failed: %v: %v", e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("WebSocket handshake failed: %v", e.Kind)
	}
	return fmt.Sprintf("WebSocket handshake failed: %v", e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Codec failure kinds. Use errors.Is to test for them.
var (
	ErrProtocolViolation   = errors.New("protocol violation")
	ErrFrameTooLarge       = errors.New("frame too large")
	ErrMessageTooLarge     = errors.New("message too large")
	ErrInvalidControlFrame = errors.New("invalid control frame")
	ErrInvalidUTF8         = errors.New("invalid UTF-8 in text message")
)

// CodecError is a malformed or disallowed frame or message.
// It is always fatal to the connection.
type CodecError struct {
	Kind error
	Msg  string
}

func codecErrorf(kind error, f string, v ...interface{}) *CodecError {
	return &CodecError{
		Kind: kind,
		Msg:  fmt.Sprintf(f, v...),
	}
}

func (e *CodecError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Msg)
}

func (e *CodecError) Unwrap() error {
	return e.Kind
}

// closeStatus is the status code sent to the peer for e.
func (e *CodecError) closeStatus() StatusCode {
	switch e.Kind {
	case ErrInvalidUTF8:
		return StatusInvalidFramePayloadData
	case ErrFrameTooLarge, ErrMessageTooLarge:
		return StatusMessageTooBig
	}
	return StatusProtocolError
}
