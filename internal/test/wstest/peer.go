// Package wstest has helpers for testing the client against real and
// scripted servers.
package wstest

import (
	"bufio"
	"bytes"
	"fmt"
	"net"

	"github.com/gobwas/ws"

	"github.com/wessendorf/websocket/internal/errd"
)

// Peer is the server end of an in memory connection. Tests script it
// frame by frame.
type Peer struct {
	net.Conn
	br *bufio.Reader
}

// Pipe returns an in memory connection. The client end is meant to be
// passed to websocket.Open and the server end is scripted through Peer.
func Pipe() (net.Conn, *Peer) {
	c1, c2 := net.Pipe()
	return c1, &Peer{
		Conn: c2,
		br:   bufio.NewReader(c2),
	}
}

// Upgrade performs the server side of the opening handshake.
func (p *Peer) Upgrade() (err error) {
	defer errd.Wrap(&err, "failed to upgrade")

	_, err = ws.Upgrade(readWriter{p})
	return err
}

// RespondRaw reads the handshake request and replies with resp verbatim.
func (p *Peer) RespondRaw(resp string) (err error) {
	defer errd.Wrap(&err, "failed to respond")

	for {
		line, err := p.br.ReadString('\n')
		if err != nil {
			return err
		}
		if line == "\r\n" {
			break
		}
	}
	_, err = p.Write([]byte(resp))
	return err
}

// ReadFrame reads a frame sent by the client. Client frames must be
// masked; the payload is returned unmasked.
func (p *Peer) ReadFrame() (_ ws.Frame, err error) {
	defer errd.Wrap(&err, "failed to read frame")

	f, err := ws.ReadFrame(p.br)
	if err != nil {
		return f, err
	}
	if !f.Header.Masked {
		return f, fmt.Errorf("received unmasked %v frame", f.Header.OpCode)
	}
	ws.Cipher(f.Payload, f.Header.Mask, 0)
	f.Header.Masked = false
	return f, nil
}

// ReadClose reads frames until a close frame and returns its status code
// and reason. Data and control frames read before it are discarded.
func (p *Peer) ReadClose() (ws.StatusCode, string, error) {
	for {
		f, err := p.ReadFrame()
		if err != nil {
			return 0, "", err
		}
		if f.Header.OpCode == ws.OpClose {
			code, reason := ws.ParseCloseFrameData(f.Payload)
			return code, reason, nil
		}
	}
}

// WriteFrame writes an unmasked frame in a single write.
// net.Pipe is unbuffered so a frame split over two writes could leave
// the payload blocked once the client stops reading.
func (p *Peer) WriteFrame(f ws.Frame) (err error) {
	defer errd.Wrap(&err, "failed to write %v frame", f.Header.OpCode)

	b, err := ws.CompileFrame(f)
	if err != nil {
		return err
	}
	_, err = p.Write(b)
	return err
}

// WriteHeader writes a frame header without its payload.
func (p *Peer) WriteHeader(h ws.Header) error {
	b := &bytes.Buffer{}
	err := ws.WriteHeader(b, h)
	if err != nil {
		return err
	}
	_, err = p.Write(b.Bytes())
	return err
}

// WriteClose writes a close frame with the given status.
func (p *Peer) WriteClose(code ws.StatusCode, reason string) error {
	return p.WriteFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// readWriter reads through the Peer's buffered reader so no bytes are
// lost between the handshake and the frames after it.
type readWriter struct {
	p *Peer
}

func (rw readWriter) Read(b []byte) (int, error) {
	return rw.p.br.Read(b)
}

func (rw readWriter) Write(b []byte) (int, error) {
	return rw.p.Conn.Write(b)
}
