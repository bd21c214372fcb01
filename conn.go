package websocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Conn represents a client WebSocket connection.
//
// A Conn runs two goroutines: a reader that performs the opening handshake,
// decodes frames, drives every state transition and calls the Handler, and
// a writer that serializes outgoing frames. All methods may be called
// concurrently, including from Handler callbacks.
type Conn struct {
	addr    *Address
	opts    *Options
	handler Handler
	log     *slog.Logger

	state atomicState

	rwc     io.ReadWriteCloser
	br      *bufio.Reader
	readBuf []byte
	msg     msgAssembler

	cw connWriter

	opened   chan error
	closed   chan struct{}
	finished chan struct{}

	closeMu     sync.Mutex
	closeTimer  *time.Timer
	closeResult CloseError
	closeErr    error

	pingCounter   atomic.Int64
	activePingsMu sync.Mutex
	activePings   map[string]chan<- struct{}
}

type dialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

func newConn(addr *Address, h Handler, opts *Options) *Conn {
	if h == nil {
		h = HandlerAdapter{}
	}

	c := &Conn{
		addr:        addr,
		opts:        opts,
		handler:     h,
		log:         opts.Logger.With("addr", addr.Redacted()),
		readBuf:     make([]byte, 8),
		opened:      make(chan error, 1),
		closed:      make(chan struct{}),
		finished:    make(chan struct{}),
		activePings: make(map[string]chan<- struct{}),
	}
	c.state.Store(StateConnecting)
	c.msg.limit = opts.MaxMessageSize
	c.cw.init(c)
	return c
}

// Open performs the opening handshake with addr over rwc and returns the
// OPEN connection. rwc is typically a TCP or TLS connection; Open owns it
// from now on and closes it when the connection closes, including when
// Open fails.
//
// ctx bounds the handshake only. Handler callbacks start with OnOpen once
// the handshake succeeded.
func Open(ctx context.Context, rwc io.ReadWriteCloser, addr *Address, h Handler, opts *Options) (*Conn, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		rwc.Close()
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	c := newConn(addr, h, opts)
	err = c.start(ctx, func(context.Context) (io.ReadWriteCloser, error) {
		return rwc, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// start launches the reader goroutine and waits for the opening
// handshake to resolve.
func (c *Conn) start(ctx context.Context, dial dialFunc) error {
	go c.run(ctx, dial)
	return <-c.opened
}

func (c *Conn) run(ctx context.Context, dial dialFunc) {
	defer close(c.finished)

	err := c.open(ctx, dial)
	if err != nil {
		c.close(CloseError{Code: StatusAbnormalClosure}, err)
		c.opened <- err
		c.callHandler(func() {
			c.handler.OnError(err)
		})
		c.callHandler(func() {
			c.handler.OnClose(StatusAbnormalClosure, "")
		})
		return
	}
	c.log.Debug("connection open")

	go c.cw.loop()
	c.opened <- nil

	c.callHandler(c.handler.OnOpen)
	c.readLoop()

	<-c.cw.done
	c.msg.reset()

	c.closeMu.Lock()
	ce, err := c.closeResult, c.closeErr
	c.closeMu.Unlock()

	c.log.Debug("connection closed", "code", ce.Code, "reason", ce.Reason, "err", err)
	if err != nil {
		c.callHandler(func() {
			c.handler.OnError(err)
		})
	}
	c.callHandler(func() {
		c.handler.OnClose(ce.Code, ce.Reason)
	})
}

func (c *Conn) open(ctx context.Context, dial dialFunc) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	rwc, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial %v: %w", c.addr.Redacted(), err)
	}

	c.closeMu.Lock()
	c.rwc = rwc
	c.br = bufio.NewReader(rwc)
	c.cw.bw = bufio.NewWriter(rwc)
	c.closeMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		rwc.Close()
	})
	err = handshake(c.br, c.cw.bw, c.addr, c.opts.Header, c.opts.rand)
	if !stop() {
		return errors.Join(ctx.Err(), err)
	}
	if err != nil {
		return err
	}

	if !c.state.CAS(StateConnecting, StateOpen) {
		return &StateError{Op: "open", State: c.state.Load()}
	}
	return nil
}

// Address returns the address the connection was opened to.
func (c *Conn) Address() *Address {
	return c.addr
}

// State returns the current state of the connection.
func (c *Conn) State() State {
	return c.state.Load()
}

// Done returns a channel that is closed once the connection is CLOSED.
// OnError and OnClose may still be running when it is closed; use Wait to
// also wait for them.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Wait blocks until the connection is CLOSED and the Handler's final
// callbacks returned, or until ctx expires.
// Calling Wait from a Handler callback deadlocks until ctx expires.
func (c *Conn) Wait(ctx context.Context) error {
	select {
	case <-c.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close starts the close handshake with the given status code and reason.
// It does not wait for the handshake to complete; use Wait for that.
// If the peer does not answer within Options.CloseTimeout the connection
// is closed anyway.
//
// The maximum length of reason is 123 bytes.
// Calling Close on a CLOSING or CLOSED connection is a no-op.
func (c *Conn) Close(code StatusCode, reason string) error {
	ce := CloseError{
		Code:   code,
		Reason: reason,
	}
	_, err := ce.bytes()
	if err != nil {
		return fmt.Errorf("failed to marshal close frame: %w", err)
	}

	if !c.state.CAS(StateOpen, StateClosing) {
		st := c.state.Load()
		if st == StateClosing || st == StateClosed {
			return nil
		}
		return &StateError{Op: "close", State: st}
	}

	c.log.Debug("closing", "code", code, "reason", reason)
	_, _, first := c.cw.queueClose(ce)
	if first {
		c.startCloseTimer()
	}
	return nil
}

func (c *Conn) startCloseTimer() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.isClosed() || c.closeTimer != nil {
		return
	}
	c.closeTimer = time.AfterFunc(c.opts.CloseTimeout, func() {
		c.close(CloseError{
			Code:   StatusAbnormalClosure,
			Reason: "close handshake timed out",
		}, nil)
	})
}

// close tears down the connection. Only the first call has an effect.
// ce and err are what the Handler's OnClose and OnError receive.
func (c *Conn) close(ce CloseError, err error) {
	c.closeMu.Lock()
	if c.isClosed() {
		c.closeMu.Unlock()
		return
	}
	c.closeResult = ce
	c.closeErr = err
	c.state.Store(StateClosed)
	close(c.closed)
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	rwc := c.rwc
	c.closeMu.Unlock()

	if rwc != nil {
		cerr := rwc.Close()
		if cerr != nil {
			c.log.Debug("failed to close stream", "err", cerr)
		}
	}
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fail sends a close frame for a codec error, waits for it to be flushed
// and tears the connection down. When a close frame was queued already,
// e.g. by Close, that frame's status is the one reported to OnClose.
func (c *Conn) fail(cerr *CodecError) {
	ce := CloseError{
		Code:   cerr.closeStatus(),
		Reason: cerr.Kind.Error(),
	}
	c.log.Debug("failing connection", "code", ce.Code, "err", cerr)

	c.state.CAS(StateOpen, StateClosing)
	ce, done, _ := c.cw.queueClose(ce)
	c.waitFlushed(done)
	c.close(ce, cerr)
}

// waitFlushed waits for done bounded by the close timeout.
func (c *Conn) waitFlushed(done <-chan struct{}) {
	t := time.NewTimer(c.opts.CloseTimeout)
	defer t.Stop()

	select {
	case <-done:
	case <-c.closed:
	case <-t.C:
		c.log.Debug("timed out flushing close frame")
	}
}

// callHandler runs a Handler callback. A panicking callback is logged and
// does not take down the reader.
func (c *Conn) callHandler(fn func()) {
	defer func() {
		r := recover()
		if r != nil {
			c.log.Error("websocket handler panicked", "panic", r)
		}
	}()
	fn()
}

// Ping sends a ping to the peer and waits for a pong.
// Use this to measure latency or ensure the peer is responsive.
func (c *Conn) Ping(ctx context.Context) error {
	p := c.pingCounter.Add(1)

	err := c.ping(ctx, strconv.FormatInt(p, 10))
	if err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}
	return nil
}

func (c *Conn) ping(ctx context.Context, p string) error {
	pong := make(chan struct{}, 1)

	c.activePingsMu.Lock()
	c.activePings[p] = pong
	c.activePingsMu.Unlock()

	defer func() {
		c.activePingsMu.Lock()
		delete(c.activePings, p)
		c.activePingsMu.Unlock()
	}()

	err := c.cw.write(ctx, opPing, []byte(p))
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return &StateError{Op: "wait for pong", State: StateClosed}
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for pong: %w", ctx.Err())
	case <-pong:
		return nil
	}
}

// SendText queues a text message. It returns once the message is queued;
// write failures are reported to the Handler.
// It fails with ErrInvalidState unless the connection is OPEN.
func (c *Conn) SendText(msg string) error {
	return c.cw.enqueue(opText, []byte(msg), nil)
}

// SendBinary queues a binary message. p is copied.
// It fails with ErrInvalidState unless the connection is OPEN.
func (c *Conn) SendBinary(p []byte) error {
	return c.cw.enqueue(opBinary, append([]byte(nil), p...), nil)
}

// Write writes a message and waits until it was flushed to the stream
// or ctx expires.
func (c *Conn) Write(ctx context.Context, typ MessageType, p []byte) error {
	switch typ {
	case MessageText, MessageBinary:
	default:
		return fmt.Errorf("unknown message type %v", typ)
	}

	err := c.cw.write(ctx, opcode(typ), append([]byte(nil), p...))
	if err != nil {
		return fmt.Errorf("failed to write msg: %w", err)
	}
	return nil
}
