package websocket

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Defaults applied to zero Options fields.
const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultCloseTimeout     = 5 * time.Second
	DefaultMaxFrameSize     = 1 << 20
	DefaultMaxMessageSize   = 4 << 20
)

// Options configures a connection. The zero value is ready to use.
// Options can be loaded from YAML with LoadOptions.
type Options struct {
	// HandshakeTimeout bounds dialing and the opening handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// CloseTimeout bounds the wait for the peer's close frame once ours
	// was sent. When it elapses the connection is closed anyway.
	CloseTimeout time.Duration `yaml:"close_timeout"`

	// MaxFrameSize is the largest frame payload accepted from the peer.
	MaxFrameSize int64 `yaml:"max_frame_size"`

	// MaxMessageSize is the largest reassembled message accepted from the peer.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// SendRate limits outgoing data messages per second.
	// Zero means unlimited.
	SendRate float64 `yaml:"send_rate"`

	// SendBurst is the burst allowed by SendRate. Defaults to 1.
	SendBurst int `yaml:"send_burst"`

	// Header holds extra HTTP headers for the handshake request.
	Header http.Header `yaml:"header"`

	// TLSConfig is used to dial wss addresses.
	TLSConfig *tls.Config `yaml:"-"`

	// NetDialContext dials the TCP connection. Defaults to net.Dialer.DialContext.
	NetDialContext func(ctx context.Context, network, addr string) (net.Conn, error) `yaml:"-"`

	// Logger receives debug logs about the connection lifecycle.
	// Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// rand is the source of handshake keys and mask keys.
	rand io.Reader
}

// LoadOptions reads Options from a YAML file.
// Durations are written like 5s or 1m30s.
func LoadOptions(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}

	var opts Options
	err = yaml.Unmarshal(b, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse options %v: %w", path, err)
	}

	err = opts.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid options %v: %w", path, err)
	}
	return &opts, nil
}

func (opts *Options) validate() error {
	switch {
	case opts.HandshakeTimeout < 0:
		return errors.New("handshake_timeout must not be negative")
	case opts.CloseTimeout < 0:
		return errors.New("close_timeout must not be negative")
	case opts.MaxFrameSize < 0:
		return errors.New("max_frame_size must not be negative")
	case opts.MaxMessageSize < 0:
		return errors.New("max_message_size must not be negative")
	case opts.SendRate < 0:
		return errors.New("send_rate must not be negative")
	case opts.SendBurst < 0:
		return errors.New("send_burst must not be negative")
	}
	return nil
}

// withDefaults returns a copy of opts with defaults applied.
// opts may be nil.
func (opts *Options) withDefaults() (*Options, error) {
	var o Options
	if opts != nil {
		o = *opts
	}

	err := o.validate()
	if err != nil {
		return nil, err
	}

	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.SendBurst == 0 {
		o.SendBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NetDialContext == nil {
		var d net.Dialer
		o.NetDialContext = d.DialContext
	}
	if o.rand == nil {
		o.rand = cryptorand.Reader
	}
	return &o, nil
}

// sendLimiter returns the limiter for outgoing data messages or nil when
// sends are unlimited.
func (opts *Options) sendLimiter() *rate.Limiter {
	if opts.SendRate == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst)
}
