package websocket

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Client is a WebSocket client for a single address.
//
// It wraps one Conn at a time: Connect opens a new one once the previous
// connection is CLOSED. Events are delivered to the Handler set with
// SetHandler.
type Client struct {
	addr *Address
	opts *Options

	mu      sync.Mutex
	handler Handler
	conn    *Conn
}

// NewClient returns a client for the ws:// or wss:// URI u.
// The default port is applied when u has none.
// No I/O happens until Connect.
func NewClient(u string, opts *Options) (*Client, error) {
	addr, err := ParseAddress(u)
	if err != nil {
		return nil, err
	}

	opts, err = opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return &Client{
		addr:    addr,
		opts:    opts,
		handler: HandlerAdapter{},
	}, nil
}

// Address returns the address of the client with the default port applied.
func (cl *Client) Address() *Address {
	return cl.addr
}

// SetHandler sets the handler for connections opened by later Connect calls.
// A nil handler discards all events.
func (cl *Client) SetHandler(h Handler) {
	if h == nil {
		h = HandlerAdapter{}
	}

	cl.mu.Lock()
	cl.handler = h
	cl.mu.Unlock()
}

// ReadyState returns the state of the current connection.
// It is StateClosed before the first Connect.
func (cl *Client) ReadyState() State {
	c := cl.current()
	if c == nil {
		return StateClosed
	}
	return c.State()
}

// Conn returns the current connection or nil before the first Connect.
func (cl *Client) Conn() *Conn {
	return cl.current()
}

func (cl *Client) current() *Conn {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn
}

// Connect dials the address and performs the opening handshake.
// It blocks until the connection is OPEN or failed. On failure the
// connection ends CLOSED and the Handler receives OnError and OnClose.
//
// ctx bounds dialing and the handshake, as does Options.HandshakeTimeout.
// Connect fails with ErrInvalidState while a previous connection is not
// CLOSED yet.
func (cl *Client) Connect(ctx context.Context) error {
	cl.mu.Lock()
	if cl.conn != nil {
		st := cl.conn.State()
		if st != StateClosed {
			cl.mu.Unlock()
			return &StateError{Op: "connect", State: st}
		}
	}
	c := newConn(cl.addr, cl.handler, cl.opts)
	cl.conn = c
	cl.mu.Unlock()

	return c.start(ctx, func(ctx context.Context) (io.ReadWriteCloser, error) {
		return dialStream(ctx, cl.addr, cl.opts)
	})
}

// SendText queues a text message on the current connection.
// It fails with ErrInvalidState unless the connection is OPEN.
func (cl *Client) SendText(msg string) error {
	c := cl.current()
	if c == nil {
		return &StateError{Op: "send text frame", State: StateClosed}
	}
	return c.SendText(msg)
}

// SendBinary queues a binary message on the current connection.
// It fails with ErrInvalidState unless the connection is OPEN.
func (cl *Client) SendBinary(p []byte) error {
	c := cl.current()
	if c == nil {
		return &StateError{Op: "send binary frame", State: StateClosed}
	}
	return c.SendBinary(p)
}

// Close starts the close handshake with StatusNormalClosure.
// It is a no-op when there is no connection or it is already closing.
func (cl *Client) Close() error {
	return cl.CloseWithStatus(StatusNormalClosure, "")
}

// CloseWithStatus starts the close handshake with the given code and reason.
func (cl *Client) CloseWithStatus(code StatusCode, reason string) error {
	c := cl.current()
	if c == nil {
		return nil
	}
	return c.Close(code, reason)
}

// Wait blocks until the current connection is CLOSED and its final
// callbacks returned, or until ctx expires.
func (cl *Client) Wait(ctx context.Context) error {
	c := cl.current()
	if c == nil {
		return nil
	}
	return c.Wait(ctx)
}
