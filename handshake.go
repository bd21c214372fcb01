package websocket

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// keyGUID is appended to Sec-WebSocket-Key before hashing.
// See https://tools.ietf.org/html/rfc6455#section-1.3
const keyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Headers written by the handshake itself; Options.Header cannot override them.
var reservedHandshakeHeaders = map[string]bool{
	"Host":                  true,
	"Upgrade":               true,
	"Connection":            true,
	"Sec-Websocket-Key":     true,
	"Sec-Websocket-Version": true,
	"Sec-Websocket-Accept":  true,
}

func secWebSocketKey(rr io.Reader) (string, error) {
	b := make([]byte, 16)
	_, err := io.ReadFull(rr, b)
	if err != nil {
		return "", fmt.Errorf("failed to read random data from rand.Reader: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func secWebSocketAccept(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write([]byte(keyGUID))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// handshake performs the client side of the opening handshake over br and bw.
// br must be the reader used for frames afterwards as the server may send
// frames right behind its response.
// See https://tools.ietf.org/html/rfc6455#section-4.1
func handshake(br *bufio.Reader, bw *bufio.Writer, addr *Address, extra http.Header, rr io.Reader) error {
	key, err := secWebSocketKey(rr)
	if err != nil {
		return &HandshakeError{Err: err}
	}

	err = writeHandshakeRequest(bw, addr, key, extra)
	if err != nil {
		return &HandshakeError{Err: fmt.Errorf("failed to write handshake request: %w", err)}
	}

	// A 101 response has no body so ReadResponse stops right after the
	// blank line terminating the headers.
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return &HandshakeError{Err: fmt.Errorf("failed to read handshake response: %w", err)}
	}

	return verifyServerResponse(resp, key)
}

func writeHandshakeRequest(bw *bufio.Writer, addr *Address, key string, extra http.Header) error {
	fmt.Fprintf(bw, "GET %s HTTP/1.1\r\n", addr.RequestURI())
	fmt.Fprintf(bw, "Host: %s\r\n", hostHeader(addr))
	bw.WriteString("Upgrade: websocket\r\n")
	bw.WriteString("Connection: Upgrade\r\n")
	bw.WriteString("Sec-WebSocket-Version: 13\r\n")
	fmt.Fprintf(bw, "Sec-WebSocket-Key: %s\r\n", key)

	err := extra.WriteSubset(bw, reservedHandshakeHeaders)
	if err != nil {
		return err
	}

	bw.WriteString("\r\n")
	return bw.Flush()
}

// hostHeader omits the port when it is the scheme default.
func hostHeader(addr *Address) string {
	if addr.Secure() && addr.Port == 443 || !addr.Secure() && addr.Port == 80 {
		if strings.Contains(addr.Host, ":") {
			return "[" + addr.Host + "]"
		}
		return addr.Host
	}
	return net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))
}

func verifyServerResponse(resp *http.Response, key string) error {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return &HandshakeError{
			Kind:       ErrBadStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("expected handshake response status code %v but got %v", http.StatusSwitchingProtocols, resp.StatusCode),
		}
	}

	if !httpguts.HeaderValuesContainsToken(resp.Header.Values("Connection"), "Upgrade") {
		return &HandshakeError{
			Kind:       ErrBadUpgrade,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("Connection header %q does not contain Upgrade", resp.Header.Get("Connection")),
		}
	}

	if !httpguts.HeaderValuesContainsToken(resp.Header.Values("Upgrade"), "websocket") {
		return &HandshakeError{
			Kind:       ErrBadUpgrade,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("Upgrade header %q does not contain websocket", resp.Header.Get("Upgrade")),
		}
	}

	if resp.Header.Get("Sec-WebSocket-Accept") != secWebSocketAccept(key) {
		return &HandshakeError{
			Kind:       ErrBadAccept,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("Sec-WebSocket-Accept %q does not match key %q", resp.Header.Get("Sec-WebSocket-Accept"), key),
		}
	}

	return nil
}
