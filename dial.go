package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
)

// dialStream opens the byte stream for addr: plain TCP for ws and TLS over
// TCP for wss. Certificate verification is left to crypto/tls and
// Options.TLSConfig.
func dialStream(ctx context.Context, addr *Address, opts *Options) (io.ReadWriteCloser, error) {
	conn, err := opts.NetDialContext(ctx, "tcp", addr.HostPort())
	if err != nil {
		return nil, err
	}
	if !addr.Secure() {
		return conn, nil
	}

	cfg := opts.TLSConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = addr.Host
	}

	tc := tls.Client(conn, cfg)
	err = tc.HandshakeContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return tc, nil
}
