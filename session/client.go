// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/remotesession/channel"
	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/lib/metrics"
	"github.com/bureau-foundation/remotesession/transport"
)

const (
	// DefaultRetryInterval separates connection attempts.
	DefaultRetryInterval = 5 * time.Second

	// DefaultConnectTimeout abandons an attempt that has neither
	// succeeded nor failed.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReceiveBufferSize is the socket receive buffer requested
	// for TCP streams, sized for several full frames.
	DefaultReceiveBufferSize = 4 << 20
)

// ClientState is the client's connection state.
type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ClientState(%d)", int(s))
	}
}

// ClientConfig describes a client.
type ClientConfig struct {
	// Address is the host to connect to, "host:port". A missing port
	// means transport.DefaultPort.
	Address string

	// Transport is transport.KindTCP (the default) or
	// transport.KindWebSocket. Ignored when Dialer is set.
	Transport string

	// Path is the WebSocket upgrade path.
	Path string

	// Dialer overrides the dialer built from Transport.
	Dialer transport.Dialer

	RetryInterval  time.Duration
	ConnectTimeout time.Duration

	// ReceiveBufferSize is requested for TCP streams. Zero selects
	// DefaultReceiveBufferSize; a negative value keeps the system
	// default.
	ReceiveBufferSize int

	// Framebuffer configures the receiver. Its Codec decodes frames
	// whose codec cannot be detected from the payload.
	Framebuffer channel.FramebufferOptions

	// Sink receives decoded frames. Defaults to a MemorySink.
	Sink display.Sink

	// InputTarget is the local input path the recording handler
	// forwards unconsumed events to. May be nil.
	InputTarget input.Handler

	// InputRecorder, when set, receives every event sent to the host.
	InputRecorder input.Writer

	ReceiveInBackground bool
	ShutdownTimeout     time.Duration
	Pool                *TaskPool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// dialResult is the outcome of one connection attempt.
type dialResult struct {
	conn net.Conn
	err  error
}

// attempt is a connection attempt in progress.
type attempt struct {
	started time.Time
	cancel  context.CancelFunc
	result  chan dialResult
}

// Client connects to a host, receives its framebuffer, and sends local
// input. It reconnects on a fixed interval whenever it is not
// connected.
type Client struct {
	*Role

	address        string
	dialer         transport.Dialer
	retryInterval  time.Duration
	connectTimeout time.Duration
	framebuffer    channel.FramebufferOptions
	sink           display.Sink
	recorder       input.Writer
	handler        *input.RecordingHandler

	state       ClientState
	attempts    int
	lastAttempt time.Time
	pending     *attempt
}

// NewClient returns a disconnected client. The first Tick starts
// connecting.
func NewClient(config ClientConfig) (*Client, error) {
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.Transport == "" {
		config.Transport = transport.KindTCP
	}
	if config.ReceiveBufferSize == 0 {
		config.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if config.Dialer == nil {
		dialer, err := transport.NewDialer(config.Transport, transport.DialerOptions{
			Timeout:           config.ConnectTimeout,
			ReceiveBufferSize: max(config.ReceiveBufferSize, 0),
			Path:              config.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("creating client: %w", err)
		}
		config.Dialer = dialer
	}

	role := newRole(RoleConfig{
		Name:                "client",
		ReceiveInBackground: config.ReceiveInBackground,
		ShutdownTimeout:     config.ShutdownTimeout,
		Pool:                config.Pool,
		Clock:               config.Clock,
		Logger:              config.Logger,
		Metrics:             config.Metrics,
	})
	client := &Client{
		Role:           role,
		address:        transport.NormalizeAddress(config.Address, transport.DefaultPort),
		dialer:         config.Dialer,
		retryInterval:  config.RetryInterval,
		connectTimeout: config.ConnectTimeout,
		framebuffer:    config.Framebuffer,
		sink:           config.Sink,
		recorder:       config.InputRecorder,
	}
	client.handler = input.NewRecordingHandler(input.RecordingConfig{
		Target:    config.InputTarget,
		Scheduler: role.Queue(),
		Logger:    role.logger,
		Metrics:   config.Metrics,
	})
	return client, nil
}

// Address returns the normalized host address.
func (c *Client) Address() string { return c.address }

// State returns the connection state.
func (c *Client) State() ClientState { return c.state }

// Attempts returns how many connection attempts have started.
func (c *Client) Attempts() int { return c.attempts }

// RecordingHandler returns the handler local input should be fed to.
// Its events reach the host while connected.
func (c *Client) RecordingHandler() *input.RecordingHandler { return c.handler }

// FramebufferChannel returns the receiving framebuffer channel of the
// current connection.
func (c *Client) FramebufferChannel() (*channel.FramebufferChannel, bool) {
	found, ok := c.Channel(channel.FramebufferType)
	if !ok {
		return nil, false
	}
	framebuffer, ok := found.(*channel.FramebufferChannel)
	return framebuffer, ok
}

// InputChannel returns the sending input channel of the current
// connection.
func (c *Client) InputChannel() (*channel.InputChannel, bool) {
	found, ok := c.Channel(channel.InputType)
	if !ok {
		return nil, false
	}
	inputChannel, ok := found.(*channel.InputChannel)
	return inputChannel, ok
}

// Tick advances the connection state machine and, while connected,
// the role.
func (c *Client) Tick(dt time.Duration) {
	if c.isClosed() {
		return
	}
	switch c.state {
	case StateDisconnected:
		if c.attempts == 0 || c.clock.Since(c.lastAttempt) >= c.retryInterval {
			c.startAttempt()
		}
		c.Role.Tick(dt)
	case StateConnecting:
		c.pollAttempt()
		c.Role.Tick(dt)
	case StateConnected:
		c.Role.Tick(dt)
		if !c.IsConnected() {
			c.state = StateDisconnected
			c.logger.Info("connection lost", "address", c.address)
		}
	}
}

func (c *Client) startAttempt() {
	c.attempts++
	c.lastAttempt = c.clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	pending := &attempt{started: c.lastAttempt, cancel: cancel, result: make(chan dialResult, 1)}
	c.pending = pending
	c.state = StateConnecting
	c.logger.Debug("connecting", "address", c.address, "attempt", c.attempts)

	go func() {
		conn, err := c.dialer.DialContext(ctx, c.address)
		pending.result <- dialResult{conn: conn, err: err}
	}()
}

// pollAttempt checks the pending attempt without blocking.
func (c *Client) pollAttempt() {
	pending := c.pending
	select {
	case result := <-pending.result:
		c.pending = nil
		pending.cancel()
		if result.err != nil {
			c.state = StateDisconnected
			c.metrics.ConnectAttempt(metrics.OutcomeFailed)
			c.logger.Debug("connection attempt failed", "address", c.address, "error", result.err)
			return
		}
		if err := c.attach(result.conn, c.buildChannels); err != nil {
			c.state = StateDisconnected
			c.metrics.ConnectAttempt(metrics.OutcomeFailed)
			c.logger.Warn("setting up connection failed", "address", c.address, "error", err)
			return
		}
		c.state = StateConnected
		c.metrics.ConnectAttempt(metrics.OutcomeConnected)
	default:
		if c.clock.Since(pending.started) < c.connectTimeout {
			return
		}
		c.abandonAttempt()
		c.state = StateDisconnected
		c.metrics.ConnectAttempt(metrics.OutcomeTimedOut)
		c.logger.Debug("connection attempt timed out", "address", c.address, "timeout", c.connectTimeout)
	}
}

// abandonAttempt cancels the pending dial. A connection that still
// completes is closed.
func (c *Client) abandonAttempt() {
	pending := c.pending
	if pending == nil {
		return
	}
	c.pending = nil
	pending.cancel()
	go func() {
		if result := <-pending.result; result.conn != nil {
			result.conn.Close()
		}
	}()
}

func (c *Client) buildChannels(handle *channel.Handle) ([]channel.Channel, error) {
	inputChannel, err := channel.NewInputChannel(channel.InputConfig{
		Handle:   handle,
		Mode:     channel.ModeSend,
		Handler:  c.handler,
		Recorder: c.recorder,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}
	framebuffer, err := channel.NewFramebufferChannel(channel.FramebufferConfig{
		Handle:   handle,
		Mode:     channel.ModeReceive,
		Options:  c.framebuffer,
		Sink:     c.sink,
		Executor: c.pool,
		Clock:    c.clock,
		Logger:   c.logger,
		Metrics:  c.metrics,
	})
	if err != nil {
		inputChannel.Close()
		return nil, err
	}
	return []channel.Channel{inputChannel, framebuffer}, nil
}

// Close abandons any attempt in progress and drops the connection.
func (c *Client) Close() error {
	c.abandonAttempt()
	c.state = StateDisconnected
	return c.Role.Close()
}
