package websocket

import (
	"bytes"
	"unicode/utf8"

	"github.com/wessendorf/websocket/internal/bpool"
)

// message is a complete data message.
type message struct {
	typ MessageType
	p   []byte
}

// msgAssembler reassembles data frames into messages.
// See https://tools.ietf.org/html/rfc6455#section-5.4
type msgAssembler struct {
	limit int64

	pending bool
	typ     MessageType
	buf     *bytes.Buffer
}

// push adds a data frame. It reports ok once h finishes a message.
func (a *msgAssembler) push(h header, p []byte) (_ message, ok bool, err error) {
	switch h.opcode {
	case opText, opBinary:
		if a.pending {
			return message{}, false, codecErrorf(ErrProtocolViolation, "received new data message without finishing the previous message")
		}
		if int64(len(p)) > a.limit {
			return message{}, false, codecErrorf(ErrMessageTooLarge, "message exceeds limit %v", a.limit)
		}

		typ := MessageType(h.opcode)
		if h.fin {
			// Single frame messages own their freshly read payload.
			return a.finish(typ, p)
		}

		a.pending = true
		a.typ = typ
		a.buf = bpool.Get()
		a.buf.Write(p)
		return message{}, false, nil
	case opContinuation:
		if !a.pending {
			return message{}, false, codecErrorf(ErrProtocolViolation, "received continuation frame without text or binary frame")
		}
		if int64(a.buf.Len()+len(p)) > a.limit {
			return message{}, false, codecErrorf(ErrMessageTooLarge, "message exceeds limit %v", a.limit)
		}

		a.buf.Write(p)
		if !h.fin {
			return message{}, false, nil
		}

		typ := a.typ
		b := make([]byte, a.buf.Len())
		copy(b, a.buf.Bytes())
		a.reset()
		return a.finish(typ, b)
	}
	return message{}, false, codecErrorf(ErrProtocolViolation, "unexpected %v frame in message", h.opcode)
}

func (a *msgAssembler) finish(typ MessageType, p []byte) (message, bool, error) {
	if typ == MessageText && !utf8.Valid(p) {
		return message{}, false, codecErrorf(ErrInvalidUTF8, "received %v byte text message", len(p))
	}
	return message{typ: typ, p: p}, true, nil
}

// reset drops any partially assembled message.
func (a *msgAssembler) reset() {
	if a.buf != nil {
		bpool.Put(a.buf)
		a.buf = nil
	}
	a.pending = false
	a.typ = 0
}
