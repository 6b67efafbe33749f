// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backchannel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/metrics"
	"github.com/bureau-foundation/remotesession/lib/netutil"
	"github.com/bureau-foundation/remotesession/osc"
)

// ErrClosed is returned by SendPacket once the connection is
// disconnected.
var ErrClosed = errors.New("connection closed")

// Config holds the optional collaborators of a Connection.
type Config struct {
	// Logger receives connection lifecycle and dispatch warnings. Nil
	// discards.
	Logger *slog.Logger

	// Metrics records message and byte counts. Nil disables.
	Metrics *metrics.Metrics

	// Description names the connection in logs. Defaults to the
	// transport's remote address when it has one.
	Description string

	// Clock timestamps inbound traffic. Defaults to the real clock.
	Clock clock.Clock
}

// Connection is one live session link. See the package documentation
// for the threading model.
type Connection struct {
	transport   io.ReadWriteCloser
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       clock.Clock
	description string
	dispatch    *DispatchMap

	connected atomic.Bool
	started   atomic.Bool
	// lastReceived is the clock's UnixNano at the most recent inbound
	// packet, or zero.
	lastReceived atomic.Int64

	sendMu sync.Mutex

	queueMu sync.Mutex
	queue   []*osc.Message
	// queued counts pending messages per address, for coalescing.
	queued map[string]int
	limits map[string]int
	// pending holds a token while the queue may be non-empty.
	pending chan struct{}

	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// New wraps transport. The connection takes ownership: Close closes
// the transport. No data is read until Start.
func New(transport io.ReadWriteCloser, config Config) *Connection {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	connection := &Connection{
		transport:   transport,
		metrics:     config.Metrics,
		clock:       clk,
		description: config.Description,
		dispatch:    NewDispatchMap(),
		queued:      make(map[string]int),
		limits:      make(map[string]int),
		pending:     make(chan struct{}, 1),
		readerDone:  make(chan struct{}),
	}
	if connection.description == "" {
		connection.description = connection.RemoteAddress()
	}
	connection.logger = logger.With("connection", connection.description)
	connection.connected.Store(true)
	return connection
}

// Start launches the reader goroutine. Calling it again has no effect.
func (c *Connection) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.readLoop()
}

// DispatchMap returns the connection's handler registry.
func (c *Connection) DispatchMap() *DispatchMap { return c.dispatch }

// Description returns the name used for this connection in logs.
func (c *Connection) Description() string { return c.description }

// RemoteAddress returns the peer address when the transport knows it,
// otherwise the empty string.
func (c *Connection) RemoteAddress() string {
	if addressed, ok := c.transport.(interface{ RemoteAddr() net.Addr }); ok {
		if address := addressed.RemoteAddr(); address != nil {
			return address.String()
		}
	}
	return ""
}

// IsConnected reports whether the transport is still usable.
func (c *Connection) IsConnected() bool { return c.connected.Load() }

// LastReceived returns when the most recent packet arrived, or the zero
// time if none has.
func (c *Connection) LastReceived() time.Time {
	nanos := c.lastReceived.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Done is closed when the reader goroutine has exited. It never closes
// for a connection that was not started.
func (c *Connection) Done() <-chan struct{} { return c.readerDone }

// SetMessageOptions limits how many undelivered messages for address
// may be pending at once. A limit of zero removes the bound.
func (c *Connection) SetMessageOptions(address string, maxQueued int) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if maxQueued <= 0 {
		delete(c.limits, address)
		return
	}
	c.limits[address] = maxQueued
	for c.queued[address] > maxQueued {
		c.dropOldestLocked(address)
	}
}

// SendPacket encodes message and writes it as one frame. A write error
// disconnects the connection.
func (c *Connection) SendPacket(message *osc.Message) error {
	if !c.IsConnected() {
		return fmt.Errorf("send %s: %w", message.Address, ErrClosed)
	}
	packet, err := message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", message.Address, err)
	}

	c.sendMu.Lock()
	err = osc.WritePacket(c.transport, packet)
	c.sendMu.Unlock()

	if err != nil {
		c.disconnect(err)
		return fmt.Errorf("send %s: %w", message.Address, err)
	}
	c.metrics.MessageSent(message.Address, len(packet)+4)
	return nil
}

// Pending returns a channel that receives a value whenever messages may
// be waiting. It is level-triggered: after a wakeup, call
// ReceivePackets until it returns zero before waiting again.
func (c *Connection) Pending() <-chan struct{} { return c.pending }

// ReceivePackets dispatches up to maxCount pending messages on the
// calling goroutine and returns how many it dispatched. A maxCount of
// zero dispatches everything pending at the time of the call. It never
// waits for data.
func (c *Connection) ReceivePackets(maxCount int) int {
	c.queueMu.Lock()
	count := len(c.queue)
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}
	batch := make([]*osc.Message, count)
	copy(batch, c.queue[:count])
	clear(c.queue[:count])
	c.queue = c.queue[count:]
	for _, message := range batch {
		c.queued[message.Address]--
		if c.queued[message.Address] == 0 {
			delete(c.queued, message.Address)
		}
	}
	if len(c.queue) > 0 {
		c.signalPending()
	}
	c.queueMu.Unlock()

	for _, message := range batch {
		if !c.dispatch.Dispatch(message) {
			c.metrics.MessageUnhandled()
			c.logger.Warn("no handler for message",
				"address", message.Address,
				"arguments", len(message.Arguments),
			)
		}
	}
	return count
}

// Close disconnects and closes the transport, then waits for the
// reader goroutine to exit. Subsequent calls return the first result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		err := c.transport.Close()
		if err != nil && !netutil.IsExpectedCloseError(err) {
			c.closeErr = fmt.Errorf("close transport: %w", err)
		}
		if c.started.Load() {
			<-c.readerDone
		}
		c.logger.Debug("connection closed")
	})
	return c.closeErr
}

func (c *Connection) readLoop() {
	defer close(c.readerDone)
	defer c.signalPending()

	for {
		packet, err := osc.ReadPacket(c.transport)
		if err != nil {
			c.disconnect(err)
			return
		}
		c.lastReceived.Store(c.clock.Now().UnixNano())

		message, err := osc.Unmarshal(packet)
		if err != nil {
			// Framing is intact, so the stream is still usable.
			c.logger.Warn("dropping malformed packet", "bytes", len(packet), "error", err)
			continue
		}
		c.metrics.MessageReceived(message.Address, len(packet)+4)
		c.enqueue(message)
	}
}

func (c *Connection) enqueue(message *osc.Message) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if limit, ok := c.limits[message.Address]; ok && c.queued[message.Address] >= limit {
		c.dropOldestLocked(message.Address)
	}
	c.queue = append(c.queue, message)
	c.queued[message.Address]++
	c.signalPending()
}

func (c *Connection) dropOldestLocked(address string) {
	for index, message := range c.queue {
		if message.Address == address {
			c.queue = append(c.queue[:index], c.queue[index+1:]...)
			c.queued[address]--
			c.metrics.MessageCoalesced(address)
			return
		}
	}
}

func (c *Connection) signalPending() {
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

// disconnect marks the connection unusable after a transport error.
func (c *Connection) disconnect(err error) {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	if netutil.IsExpectedCloseError(err) {
		c.logger.Info("connection closed by peer")
	} else {
		c.logger.Warn("connection failed", "error", err)
	}
}
