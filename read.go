package websocket

import (
	"errors"
)

// readLoop decodes frames until the connection is closed.
// It is the only place frames are read and the only caller of the
// Handler's message callbacks.
func (c *Conn) readLoop() {
	for {
		h, p, err := readFrame(c.br, c.readBuf, c.opts.MaxFrameSize)
		if err != nil {
			c.readFailed(err)
			return
		}

		// Servers must never mask.
		// See https://tools.ietf.org/html/rfc6455#section-5.1
		if h.masked {
			c.fail(codecErrorf(ErrProtocolViolation, "received masked %v frame from server", h.opcode))
			return
		}

		done := c.handleFrame(h, p)
		if done {
			return
		}
	}
}

func (c *Conn) readFailed(err error) {
	if c.isClosed() {
		return
	}

	var cerr *CodecError
	if errors.As(err, &cerr) {
		c.fail(cerr)
		return
	}

	c.close(CloseError{Code: StatusAbnormalClosure}, err)
}

// handleFrame processes a single frame and reports whether the
// connection is done.
func (c *Conn) handleFrame(h header, p []byte) bool {
	switch h.opcode {
	case opPing:
		if c.state.Load() == StateOpen {
			// Fails only when a close frame was queued in the meantime.
			_ = c.cw.enqueue(opPong, p, nil)
		}
		return false
	case opPong:
		c.activePingsMu.Lock()
		pong, ok := c.activePings[string(p)]
		c.activePingsMu.Unlock()
		if ok {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
		return false
	case opClose:
		c.handleClose(p)
		return true
	}

	if c.state.Load() != StateOpen {
		// Data received during the close handshake is discarded.
		c.msg.reset()
		return false
	}

	msg, ok, err := c.msg.push(h, p)
	if err != nil {
		var cerr *CodecError
		if errors.As(err, &cerr) {
			c.fail(cerr)
		} else {
			c.close(CloseError{Code: StatusAbnormalClosure}, err)
		}
		return true
	}
	if !ok {
		return false
	}

	c.callHandler(func() {
		switch msg.typ {
		case MessageText:
			c.handler.OnTextMessage(string(msg.p))
		case MessageBinary:
			c.handler.OnBinaryMessage(msg.p)
		}
	})
	return false
}

// handleClose completes the close handshake. When the peer started it,
// its status is echoed back before the stream is closed.
func (c *Conn) handleClose(p []byte) {
	ce, err := parseClosePayload(p)
	if err != nil {
		c.fail(codecErrorf(ErrProtocolViolation, "received invalid close payload: %v", err))
		return
	}

	c.log.Debug("received close frame", "code", ce.Code, "reason", ce.Reason)

	c.state.CAS(StateOpen, StateClosing)
	_, done, _ := c.cw.queueClose(ce.echo())
	c.waitFlushed(done)
	c.close(ce, nil)
}
