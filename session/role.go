// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/remotesession/backchannel"
	"github.com/bureau-foundation/remotesession/channel"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/metrics"
)

// ErrShutdownTimeout is returned when the background receiver does not
// exit within the role's shutdown timeout.
var ErrShutdownTimeout = errors.New("background receiver did not stop in time")

// DefaultShutdownTimeout bounds how long stopping the background
// receiver may take.
const DefaultShutdownTimeout = 2 * time.Second

// RoleConfig holds what a Role needs beyond its name.
type RoleConfig struct {
	// Name labels logs and metrics: "host" or "client".
	Name string

	// ReceiveInBackground starts each connection with a background
	// receiver instead of receiving during Tick.
	ReceiveInBackground bool

	// ShutdownTimeout bounds stopping the background receiver.
	// Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Pool runs channel encode and decode tasks. Defaults to a pool
	// sized to the CPU count.
	Pool *TaskPool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Role owns a session's connection and the channels riding on it.
// Tick, attach, and Close must be called from one goroutine; the
// query methods are safe from any goroutine.
type Role struct {
	name            string
	logger          *slog.Logger
	metrics         *metrics.Metrics
	clock           clock.Clock
	pool            *TaskPool
	queue           Queue
	shutdownTimeout time.Duration

	mu         sync.Mutex
	connection *backchannel.Connection
	handle     *channel.Handle
	channels   []channel.Channel
	background bool
	receiver   *backgroundReceiver
	closed     bool
}

func newRole(config RoleConfig) *Role {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Pool == nil {
		config.Pool = NewTaskPool(0)
	}
	return &Role{
		name:            config.Name,
		logger:          config.Logger.With("role", config.Name),
		metrics:         config.Metrics,
		clock:           config.Clock,
		pool:            config.Pool,
		shutdownTimeout: config.ShutdownTimeout,
		background:      config.ReceiveInBackground,
	}
}

// Name returns "host" or "client".
func (r *Role) Name() string { return r.name }

// Queue returns the tick goroutine's work queue.
func (r *Role) Queue() *Queue { return &r.queue }

// Pool returns the pool channel tasks run on.
func (r *Role) Pool() *TaskPool { return r.pool }

// Connection returns the live connection, or nil.
func (r *Role) Connection() *backchannel.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connection
}

// IsConnected reports whether the role holds a connected connection.
func (r *Role) IsConnected() bool {
	connection := r.Connection()
	return connection != nil && connection.IsConnected()
}

// Channel returns the channel of the given type on the current
// connection.
func (r *Role) Channel(channelType string) (channel.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.channels {
		if candidate.Type() == channelType {
			return candidate, true
		}
	}
	return nil, false
}

// Tick receives pending messages (unless a background receiver does
// that), runs queued work, and ticks every channel. A connection found
// disconnected is dropped along with its channels, but only after
// everything it received before the disconnect has been dispatched.
func (r *Role) Tick(dt time.Duration) {
	r.mu.Lock()
	connection := r.connection
	receiver := r.receiver
	channels := r.channels
	r.mu.Unlock()

	// Read the flag before receiving: the reader enqueues everything it
	// read before it clears the flag.
	alive := false
	if connection != nil {
		alive = connection.IsConnected()
		if receiver == nil {
			connection.ReceivePackets(0)
		}
	}
	r.queue.Drain()
	if connection == nil {
		return
	}
	if !alive {
		if receiver != nil && !receiver.finished() {
			return
		}
		r.dropConnection("peer disconnected")
		return
	}
	for _, current := range channels {
		current.Tick(dt)
	}
}

// SetReceiveInBackground switches reception between Tick and a
// dedicated goroutine. It takes effect immediately for a live
// connection.
func (r *Role) SetReceiveInBackground(enabled bool) error {
	r.mu.Lock()
	r.background = enabled
	connection := r.connection
	running := r.receiver != nil
	r.mu.Unlock()

	if connection == nil || enabled == running {
		return nil
	}
	if enabled {
		r.startBackground(connection)
		return nil
	}
	return r.stopBackground()
}

// ReceivingInBackground reports whether a background receiver is
// running.
func (r *Role) ReceivingInBackground() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.receiver != nil
}

// channelFactory creates the channels for a new connection. It runs
// before the connection starts reading, so handlers it registers see
// every message.
type channelFactory func(handle *channel.Handle) ([]channel.Channel, error)

// attach wraps transport in a connection, builds its channels, and
// starts it.
func (r *Role) attach(transport net.Conn, build channelFactory) error {
	connection := backchannel.New(transport, backchannel.Config{
		Logger:  r.logger,
		Metrics: r.metrics,
		Clock:   r.clock,
	})
	handle := channel.NewHandle(connection)
	channels, err := build(handle)
	if err != nil {
		connection.Close()
		return fmt.Errorf("creating channels: %w", err)
	}
	connection.Start()

	r.mu.Lock()
	r.connection = connection
	r.handle = handle
	r.channels = channels
	background := r.background
	r.mu.Unlock()

	if background {
		r.startBackground(connection)
	}
	r.metrics.Connected(r.name)
	r.logger.Info("session connected", "remote", connection.Description(), "channels", len(channels))
	return nil
}

// dropConnection tears down the current connection: background
// receiver first, then channels, then the transport.
func (r *Role) dropConnection(reason string) {
	r.mu.Lock()
	connection := r.connection
	handle := r.handle
	channels := r.channels
	r.connection = nil
	r.handle = nil
	r.channels = nil
	r.mu.Unlock()
	if connection == nil {
		return
	}

	if err := r.stopBackground(); err != nil {
		r.logger.Warn("stopping background receiver", "error", err)
	}
	handle.Invalidate()
	for _, current := range channels {
		if err := current.Close(); err != nil {
			r.logger.Warn("closing channel", "channel", current.Type(), "error", err)
		}
	}
	connection.Close()
	r.metrics.Disconnected(r.name)
	r.logger.Info("session disconnected", "remote", connection.Description(), "reason", reason)
}

// Close drops the connection. It is safe to call more than once.
func (r *Role) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.dropConnection("closed")
	return nil
}

func (r *Role) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// backgroundReceiver drains one connection on its own goroutine.
type backgroundReceiver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (b *backgroundReceiver) finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (r *Role) startBackground(connection *backchannel.Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	receiver := &backgroundReceiver{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.receiver = receiver
	r.mu.Unlock()

	go func() {
		defer close(receiver.done)
		for ctx.Err() == nil {
			alive := connection.IsConnected()
			if connection.ReceivePackets(1) > 0 {
				continue
			}
			if !alive {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-connection.Pending():
			case <-connection.Done():
			}
		}
	}()
	r.logger.Debug("background receiver started")
}

// stopBackground cancels the background receiver and waits for it,
// up to the shutdown timeout.
func (r *Role) stopBackground() error {
	r.mu.Lock()
	receiver := r.receiver
	r.receiver = nil
	r.mu.Unlock()
	if receiver == nil {
		return nil
	}

	receiver.cancel()
	select {
	case <-receiver.done:
		r.logger.Debug("background receiver stopped")
		return nil
	case <-r.clock.After(r.shutdownTimeout):
		return ErrShutdownTimeout
	}
}
