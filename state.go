package websocket

import (
	"fmt"
	"sync/atomic"
)

// State is the ready state of a connection.
// See https://html.spec.whatwg.org/multipage/web-sockets.html#dom-websocket-readystate
type State int32

// State constants.
const (
	// StateConnecting means the opening handshake has not completed yet.
	StateConnecting State = iota
	// StateOpen means the connection is established and messages may be sent.
	StateOpen
	// StateClosing means the close handshake is in progress.
	StateClosing
	// StateClosed means the connection is closed or could not be opened.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// atomicState publishes a connection's State to other goroutines.
type atomicState struct {
	v atomic.Int32
}

func (s *atomicState) Load() State {
	return State(s.v.Load())
}

func (s *atomicState) Store(st State) {
	s.v.Store(int32(st))
}

// CAS moves the state from old to new and reports whether it did.
func (s *atomicState) CAS(old, new State) bool {
	return s.v.CompareAndSwap(int32(old), int32(new))
}
