// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Compile-time interface checks.
var (
	_ Listener = (*WebSocketListener)(nil)
	_ Dialer   = (*WebSocketDialer)(nil)
	_ net.Conn = (*WebSocketConn)(nil)
)

// DefaultWebSocketPath is the HTTP path sessions are served on when
// none is configured.
const DefaultWebSocketPath = "/session"

// WebSocketListener serves session streams as websocket upgrades on a
// single HTTP path.
type WebSocketListener struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	path     string

	accepted  chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
	serveErr  chan error
}

// NewWebSocketListener listens on address and starts serving upgrades
// at path. An empty path selects DefaultWebSocketPath.
func NewWebSocketListener(address, path string) (*WebSocketListener, error) {
	if path == "" {
		path = DefaultWebSocketPath
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("websocket path %q must begin with '/'", path)
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	l := &WebSocketListener{
		listener: listener,
		path:     path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			// Sessions are not browser-initiated; any origin may
			// connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		accepted: make(chan net.Conn),
		closed:   make(chan struct{}),
		serveErr: make(chan error, 1),
	}

	router := chi.NewRouter()
	router.Get(path, l.handleUpgrade)
	l.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := l.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		l.serveErr <- err
	}()
	return l, nil
}

func (l *WebSocketListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	connection, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		return
	}
	wrapped := NewWebSocketConn(connection)
	select {
	case l.accepted <- wrapped:
	case <-l.closed:
		wrapped.Close()
	case <-r.Context().Done():
		wrapped.Close()
	}
}

// Accept waits for the next upgraded connection.
func (l *WebSocketListener) Accept(ctx context.Context) (net.Conn, error) {
	select {
	case connection := <-l.accepted:
		return connection, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, fmt.Errorf("websocket listener %s: %w", l.Address(), net.ErrClosed)
	}
}

// Address returns the listening address in "host:port" format.
func (l *WebSocketListener) Address() string {
	return l.listener.Addr().String()
}

// Path returns the HTTP path sessions are served on.
func (l *WebSocketListener) Path() string { return l.path }

// Close stops the HTTP server. Hijacked session connections are not
// tracked by the server and stay open.
func (l *WebSocketListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()
		if serveErr := <-l.serveErr; serveErr != nil && err == nil {
			err = serveErr
		}
	})
	return err
}

// WebSocketDialer opens session streams over websocket.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the HTTP upgrade. Zero leaves only the
	// context deadline.
	HandshakeTimeout time.Duration

	// Path is appended to "ws://host:port" addresses. Empty selects
	// DefaultWebSocketPath.
	Path string
}

// DialContext connects to address, which is either "host:port" or a
// full ws:// or wss:// URL.
func (d *WebSocketDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	target := address
	if !strings.HasPrefix(address, "ws://") && !strings.HasPrefix(address, "wss://") {
		path := d.Path
		if path == "" {
			path = DefaultWebSocketPath
		}
		target = "ws://" + address + path
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	connection, response, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (HTTP %d)", target, err, response.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}
	return NewWebSocketConn(connection), nil
}

// WebSocketConn presents a websocket connection as a byte stream. Each
// Write is sent as one binary message; Read returns the concatenated
// payloads of incoming binary messages and skips text messages.
//
// Read must not be called concurrently with itself. Writes may be
// concurrent.
type WebSocketConn struct {
	conn   *websocket.Conn
	reader io.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps connection.
func NewWebSocketConn(connection *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: connection}
}

// Read reads payload bytes from the current binary message, advancing
// to the next message as each one is exhausted.
func (c *WebSocketConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			messageType, reader, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			c.reader = reader
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as one binary message.
func (c *WebSocketConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure frame and closes the socket.
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// LocalAddr returns the local network address.
func (c *WebSocketConn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the peer's network address.
func (c *WebSocketConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline sets both read and write deadlines.
func (c *WebSocketConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *WebSocketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *WebSocketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
