package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/wessendorf/websocket/internal/errd"
)

// First byte contains fin, rsv1, rsv2, rsv3 and the opcode.
// Second byte contains the mask flag and payload length.
// Next 8 bytes are the maximum extended payload length.
// Last 4 bytes are the mask key.
// https://tools.ietf.org/html/rfc6455#section-5.2
const maxHeaderSize = 1 + 1 + 8 + 4

// maxControlPayload is the maximum length of a control frame payload.
// See https://tools.ietf.org/html/rfc6455#section-5.5.
const maxControlPayload = 125

// header represents a WebSocket frame header.
// See https://tools.ietf.org/html/rfc6455#section-5.2.
type header struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode opcode

	payloadLength int64

	masked  bool
	maskKey uint32
}

// readFrameHeader reads a header from r.
// readBuf must be at least 8 bytes.
func readFrameHeader(r *bufio.Reader, readBuf []byte) (_ header, err error) {
	defer errd.Wrap(&err, "failed to read frame header")

	b, err := r.ReadByte()
	if err != nil {
		return header{}, err
	}

	var h header
	h.fin = b&(1<<7) != 0
	h.rsv1 = b&(1<<6) != 0
	h.rsv2 = b&(1<<5) != 0
	h.rsv3 = b&(1<<4) != 0
	h.opcode = opcode(b & 0xf)

	b, err = r.ReadByte()
	if err != nil {
		return header{}, err
	}

	h.masked = b&(1<<7) != 0

	payloadLength := b &^ (1 << 7)
	switch {
	case payloadLength < 126:
		h.payloadLength = int64(payloadLength)
	case payloadLength == 126:
		_, err = io.ReadFull(r, readBuf[:2])
		h.payloadLength = int64(binary.BigEndian.Uint16(readBuf))
	case payloadLength == 127:
		_, err = io.ReadFull(r, readBuf[:8])
		h.payloadLength = int64(binary.BigEndian.Uint64(readBuf))
	}
	if err != nil {
		return header{}, err
	}

	if h.payloadLength < 0 {
		return header{}, codecErrorf(ErrProtocolViolation, "most significant bit of 64 bit payload length is set")
	}

	if h.masked {
		_, err = io.ReadFull(r, readBuf[:4])
		if err != nil {
			return header{}, err
		}
		h.maskKey = binary.LittleEndian.Uint32(readBuf)
	}

	return h, nil
}

// appendFrameHeader appends the wire bytes of h to b.
func appendFrameHeader(b []byte, h header) []byte {
	var b0 byte
	if h.fin {
		b0 |= 1 << 7
	}
	if h.rsv1 {
		b0 |= 1 << 6
	}
	if h.rsv2 {
		b0 |= 1 << 5
	}
	if h.rsv3 {
		b0 |= 1 << 4
	}
	b0 |= byte(h.opcode)

	var b1 byte
	if h.masked {
		b1 |= 1 << 7
	}

	switch {
	case h.payloadLength > math.MaxUint16:
		b = append(b, b0, b1|127)
		b = binary.BigEndian.AppendUint64(b, uint64(h.payloadLength))
	case h.payloadLength > maxControlPayload:
		b = append(b, b0, b1|126)
		b = binary.BigEndian.AppendUint16(b, uint16(h.payloadLength))
	default:
		b = append(b, b0, b1|byte(h.payloadLength))
	}

	if h.masked {
		b = binary.LittleEndian.AppendUint32(b, h.maskKey)
	}
	return b
}

// writeFrameHeader writes the bytes of the header to w.
func writeFrameHeader(h header, w *bufio.Writer, buf []byte) (err error) {
	defer errd.Wrap(&err, "failed to write frame header")

	_, err = w.Write(appendFrameHeader(buf[:0], h))
	return err
}

// verify checks h against the framing rules that do not depend on
// connection state.
func (h header) verify() error {
	if h.rsv1 || h.rsv2 || h.rsv3 {
		return codecErrorf(ErrProtocolViolation, "unexpected rsv bits set: %v:%v:%v", h.rsv1, h.rsv2, h.rsv3)
	}
	if !h.opcode.known() {
		return codecErrorf(ErrProtocolViolation, "unknown opcode %v", h.opcode)
	}
	if h.opcode.controlOp() {
		if !h.fin {
			return codecErrorf(ErrInvalidControlFrame, "fragmented %v frame", h.opcode)
		}
		if h.payloadLength > maxControlPayload {
			return codecErrorf(ErrInvalidControlFrame, "%v frame payload length %v exceeds %v", h.opcode, h.payloadLength, maxControlPayload)
		}
	}
	return nil
}

// encodeFrame returns the wire bytes of a frame with header h and payload p.
// The payload length is taken from p. When h.masked is set the payload is
// masked in the returned bytes; p is never modified.
func encodeFrame(h header, p []byte) ([]byte, error) {
	h.payloadLength = int64(len(p))
	err := h.verify()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, maxHeaderSize+len(p))
	b = appendFrameHeader(b, h)
	start := len(b)
	b = append(b, p...)
	if h.masked {
		mask(h.maskKey, b[start:])
	}
	return b, nil
}

// readFrame reads a complete frame from r and returns its header and
// unmasked payload. A payload longer than maxPayload is rejected with
// ErrFrameTooLarge before it is read.
func readFrame(r *bufio.Reader, readBuf []byte, maxPayload int64) (header, []byte, error) {
	h, err := readFrameHeader(r, readBuf)
	if err != nil {
		return header{}, nil, err
	}

	err = h.verify()
	if err != nil {
		return h, nil, err
	}

	if h.payloadLength > maxPayload {
		return h, nil, codecErrorf(ErrFrameTooLarge, "%v frame payload length %v exceeds limit %v", h.opcode, h.payloadLength, maxPayload)
	}

	p := make([]byte, h.payloadLength)
	_, err = io.ReadFull(r, p)
	if err != nil {
		return h, nil, fmt.Errorf("failed to read frame payload: %w", err)
	}

	if h.masked {
		mask(h.maskKey, p)
	}
	return h, p, nil
}
