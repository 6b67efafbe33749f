// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is the session port used when an address names only a
// host.
const DefaultPort = 1313

// Transport kinds accepted by Listen and NewDialer.
const (
	KindTCP       = "tcp"
	KindWebSocket = "websocket"
)

// Listener accepts inbound session streams on the host.
type Listener interface {
	// Accept waits for the next inbound stream. It returns ctx.Err()
	// if ctx is cancelled first, and an error wrapping net.ErrClosed
	// once the listener is closed.
	Accept(ctx context.Context) (net.Conn, error)

	// Address returns the bound address in "host:port" form, suitable
	// for a client to dial.
	Address() string

	// Close stops accepting. Streams already returned by Accept are
	// not affected.
	Close() error
}

// Dialer opens session streams from the client.
type Dialer interface {
	// DialContext connects to address, which has the form returned by
	// the peer Listener's Address.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// Listen creates a listener of the given kind on address. path is the
// HTTP path for websocket listeners and is ignored for TCP.
func Listen(kind, address, path string) (Listener, error) {
	switch kind {
	case KindTCP, "":
		return NewTCPListener(address)
	case KindWebSocket:
		return NewWebSocketListener(address, path)
	default:
		return nil, fmt.Errorf("unknown transport %q (want %q or %q)", kind, KindTCP, KindWebSocket)
	}
}

// DialerOptions configures NewDialer.
type DialerOptions struct {
	// Timeout bounds connection establishment. Zero leaves only the
	// context deadline.
	Timeout time.Duration

	// ReceiveBufferSize is the socket receive buffer requested for TCP
	// streams. Zero keeps the system default.
	ReceiveBufferSize int

	// Path is the HTTP path for websocket streams.
	Path string
}

// NewDialer returns a dialer of the given kind.
func NewDialer(kind string, options DialerOptions) (Dialer, error) {
	switch kind {
	case KindTCP, "":
		return &TCPDialer{Timeout: options.Timeout, ReceiveBufferSize: options.ReceiveBufferSize}, nil
	case KindWebSocket:
		return &WebSocketDialer{HandshakeTimeout: options.Timeout, Path: options.Path}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %q or %q)", kind, KindTCP, KindWebSocket)
	}
}

// NormalizeAddress returns address with defaultPort appended when it
// names only a host. Bracketed and bare IPv6 literals are accepted.
func NormalizeAddress(address string, defaultPort int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(defaultPort))
}
