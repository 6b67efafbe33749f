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

	"github.com/bureau-foundation/remotesession/channel"
	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/capture"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/metrics"
	"github.com/bureau-foundation/remotesession/lib/netutil"
	"github.com/bureau-foundation/remotesession/transport"
)

// HostConfig describes a host.
type HostConfig struct {
	// ListenAddress is where StartListening binds. Defaults to
	// ":1313".
	ListenAddress string

	// Transport is transport.KindTCP (the default) or
	// transport.KindWebSocket. Ignored when Listener is set.
	Transport string

	// Path is the WebSocket upgrade path.
	Path string

	// Listener overrides the listener StartListening would create.
	Listener transport.Listener

	// Source supplies frames. Without one the host only receives
	// input.
	Source capture.Source

	// Framebuffer configures the sender. Start from
	// channel.DefaultFramebufferOptions; the zero value sends nothing.
	Framebuffer channel.FramebufferOptions

	// InputTarget receives replayed input events on the tick
	// goroutine. May be nil.
	InputTarget input.Handler

	// PlaybackWindow maps replayed touch locations onto the host's
	// surface.
	PlaybackWindow input.Rect

	ReceiveInBackground bool
	ShutdownTimeout     time.Duration
	Pool                *TaskPool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Host accepts one client at a time, streams frames to it, and replays
// its input. A newly accepted client replaces the current one.
type Host struct {
	*Role

	listenAddress string
	kind          string
	path          string
	source        capture.Source
	framebuffer   channel.FramebufferOptions
	handler       *input.RecordingHandler

	listenMu     sync.Mutex
	listener     transport.Listener
	shutdown     bool
	accepted     chan net.Conn
	cancelAccept context.CancelFunc
	acceptDone   chan struct{}
}

// NewHost returns a host that is not yet listening.
func NewHost(config HostConfig) *Host {
	if config.ListenAddress == "" {
		config.ListenAddress = fmt.Sprintf(":%d", transport.DefaultPort)
	}
	if config.Transport == "" {
		config.Transport = transport.KindTCP
	}
	role := newRole(RoleConfig{
		Name:                "host",
		ReceiveInBackground: config.ReceiveInBackground,
		ShutdownTimeout:     config.ShutdownTimeout,
		Pool:                config.Pool,
		Clock:               config.Clock,
		Logger:              config.Logger,
		Metrics:             config.Metrics,
	})
	host := &Host{
		Role:          role,
		listenAddress: config.ListenAddress,
		kind:          config.Transport,
		path:          config.Path,
		source:        config.Source,
		framebuffer:   config.Framebuffer,
		listener:      config.Listener,
	}
	host.handler = input.NewRecordingHandler(input.RecordingConfig{
		Target:    config.InputTarget,
		Scheduler: role.Queue(),
		Logger:    role.logger,
		Metrics:   config.Metrics,
	})
	host.handler.SetPlaybackWindow(config.PlaybackWindow)
	return host
}

// RecordingHandler returns the handler replayed events pass through.
func (h *Host) RecordingHandler() *input.RecordingHandler { return h.handler }

// SetConsumeInput makes replayed events stop at the host's handler
// instead of reaching the input target.
func (h *Host) SetConsumeInput(consume bool) { h.handler.SetConsumeInput(consume) }

// StartListening binds the listener and starts accepting clients.
// Accepting stops when ctx is cancelled or the host is closed.
func (h *Host) StartListening(ctx context.Context) error {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	if h.shutdown {
		return errors.New("host is closed")
	}
	if h.accepted != nil {
		return errors.New("host is already listening")
	}
	if h.listener == nil {
		listener, err := transport.Listen(h.kind, h.listenAddress, h.path)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", h.listenAddress, err)
		}
		h.listener = listener
	}

	acceptCtx, cancel := context.WithCancel(ctx)
	h.accepted = make(chan net.Conn)
	h.cancelAccept = cancel
	h.acceptDone = make(chan struct{})
	go h.acceptLoop(acceptCtx, h.listener, h.accepted, h.acceptDone)
	h.logger.Info("listening", "address", h.listener.Address(), "transport", h.kind)
	return nil
}

func (h *Host) acceptLoop(ctx context.Context, listener transport.Listener, accepted chan<- net.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
				return
			}
			h.logger.Warn("accepting connection", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-h.clock.After(100 * time.Millisecond):
			}
			continue
		}
		select {
		case accepted <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// IsListening reports whether the accept loop is running.
func (h *Host) IsListening() bool {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	if h.acceptDone == nil {
		return false
	}
	select {
	case <-h.acceptDone:
		return false
	default:
		return true
	}
}

// Address returns the bound listen address, or "" before
// StartListening.
func (h *Host) Address() string {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Address()
}

// Tick takes a newly accepted client, if any, and ticks the role.
func (h *Host) Tick(dt time.Duration) {
	if h.isClosed() {
		return
	}
	h.listenMu.Lock()
	accepted := h.accepted
	h.listenMu.Unlock()

	select {
	case conn := <-accepted:
		if h.Connection() != nil {
			h.dropConnection("replaced by new client")
		}
		if err := h.attach(conn, h.buildChannels); err != nil {
			h.logger.Warn("setting up connection failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
	default:
	}
	h.Role.Tick(dt)
}

func (h *Host) buildChannels(handle *channel.Handle) ([]channel.Channel, error) {
	inputChannel, err := channel.NewInputChannel(channel.InputConfig{
		Handle:  handle,
		Mode:    channel.ModeReceive,
		Handler: h.handler,
		Logger:  h.logger,
	})
	if err != nil {
		return nil, err
	}
	channels := []channel.Channel{inputChannel}
	if h.source == nil {
		return channels, nil
	}
	framebuffer, err := channel.NewFramebufferChannel(channel.FramebufferConfig{
		Handle:   handle,
		Mode:     channel.ModeSend,
		Options:  h.framebuffer,
		Source:   h.source,
		Executor: h.pool,
		Clock:    h.clock,
		Logger:   h.logger,
		Metrics:  h.metrics,
	})
	if err != nil {
		inputChannel.Close()
		return nil, err
	}
	return append(channels, framebuffer), nil
}

// Close stops listening and drops the connection. A listener given in
// HostConfig is closed even if StartListening never ran.
func (h *Host) Close() error {
	h.listenMu.Lock()
	cancel := h.cancelAccept
	listener := h.listener
	done := h.acceptDone
	closeListener := listener != nil && !h.shutdown
	h.cancelAccept = nil
	h.shutdown = true
	h.listenMu.Unlock()

	if cancel != nil {
		cancel()
	}
	var listenErr error
	if closeListener {
		if err := listener.Close(); err != nil && !netutil.IsExpectedCloseError(err) {
			listenErr = fmt.Errorf("closing listener: %w", err)
		}
	}
	if cancel != nil {
		<-done
	}
	return errors.Join(listenErr, h.Role.Close())
}
