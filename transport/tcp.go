// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP session streams.
type TCPListener struct {
	listener *net.TCPListener
}

// NewTCPListener listens on address (e.g., ":1313" or
// "192.168.1.10:1313"). Use ":0" for a random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener.(*net.TCPListener)}, nil
}

// Accept waits for the next connection or for ctx to be cancelled.
func (l *TCPListener) Accept(ctx context.Context) (net.Conn, error) {
	// Cancellation unblocks Accept by moving the deadline into the
	// past. The deadline is cleared again before returning so the
	// next Accept is unaffected.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		l.listener.SetDeadline(time.Unix(1, 0))
		close(fired)
	})
	connection, err := l.listener.Accept()
	if !stop() {
		<-fired
		l.listener.SetDeadline(time.Time{})
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return connection, nil
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close shuts down the TCP listener.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP session streams.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout, only the context
	// deadline applies.
	Timeout time.Duration

	// ReceiveBufferSize, when positive, is requested as the socket
	// receive buffer.
	ReceiveBufferSize int
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	connection, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if d.ReceiveBufferSize > 0 {
		if tcp, ok := connection.(*net.TCPConn); ok {
			// The kernel may clamp the request; a smaller buffer only
			// costs throughput, so the error is ignored.
			_ = tcp.SetReadBuffer(d.ReceiveBufferSize)
		}
	}
	return connection, nil
}
