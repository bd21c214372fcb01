package websocket

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// WebSocket URI schemes.
// See https://tools.ietf.org/html/rfc6455#section-3
const (
	SchemeWS  = "ws"
	SchemeWSS = "wss"
)

// Address is a validated WebSocket endpoint address.
// The port is always set, defaulting to 80 for ws and 443 for wss.
// Path and RawPath follow url.URL: RawPath holds the encoded path when it
// differs from the default encoding of Path.
type Address struct {
	Scheme   string
	User     *url.Userinfo
	Host     string
	Port     int
	Path     string
	RawPath  string
	RawQuery string
	Fragment string
}

// ParseAddress parses and validates a ws:// or wss:// URI.
func ParseAddress(s string) (*Address, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, &AddressError{Addr: s, Err: err}
	}
	return NewAddress(u)
}

// NewAddress validates u and returns its Address with the default port
// applied when u has none.
func NewAddress(u *url.URL) (*Address, error) {
	u, err := ApplyDefaultPorts(u)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, &AddressError{Addr: u.Redacted(), Err: fmt.Errorf("missing host")}
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 || port > 65535 {
		return nil, &AddressError{Addr: u.Redacted(), Err: fmt.Errorf("invalid port %q", u.Port())}
	}

	return &Address{
		Scheme:   u.Scheme,
		User:     u.User,
		Host:     u.Hostname(),
		Port:     port,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}, nil
}

// HasWebSocketScheme reports whether u uses the ws or wss scheme.
func HasWebSocketScheme(u *url.URL) bool {
	return u.Scheme == SchemeWS || u.Scheme == SchemeWSS
}

// ApplyDefaultPorts returns a copy of u with port 80 (ws) or 443 (wss)
// set when u has no explicit port. An explicit port is preserved.
// It fails with *AddressError for any other scheme.
func ApplyDefaultPorts(u *url.URL) (*url.URL, error) {
	if !HasWebSocketScheme(u) {
		return nil, &AddressError{Addr: u.Redacted(), Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	u2 := *u
	if u2.Port() != "" {
		return &u2, nil
	}

	port := "80"
	if u2.Scheme == SchemeWSS {
		port = "443"
	}
	u2.Host = net.JoinHostPort(u2.Hostname(), port)
	return &u2, nil
}

// Secure reports whether a is a wss address.
func (a *Address) Secure() bool {
	return a.Scheme == SchemeWSS
}

// HostPort returns the host:port pair to dial.
func (a *Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// RequestURI returns the path and query sent in the handshake request line.
func (a *Address) RequestURI() string {
	u := url.URL{Path: a.Path, RawPath: a.RawPath, RawQuery: a.RawQuery}
	return u.RequestURI()
}

// URL returns a as a *url.URL.
func (a *Address) URL() *url.URL {
	return &url.URL{
		Scheme:   a.Scheme,
		User:     a.User,
		Host:     a.HostPort(),
		Path:     a.Path,
		RawPath:  a.RawPath,
		RawQuery: a.RawQuery,
		Fragment: a.Fragment,
	}
}

func (a *Address) String() string {
	return a.URL().String()
}

// Redacted is like String but replaces any password with "xxxxx".
func (a *Address) Redacted() string {
	return a.URL().Redacted()
}
