// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/remotesession/channel"
	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/capture"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/lib/metrics"
)

// LoopbackConfig describes a self-connected session.
type LoopbackConfig struct {
	// ListenAddress defaults to an ephemeral loopback port.
	ListenAddress string
	Transport     string

	Source      capture.Source
	Framebuffer channel.FramebufferOptions
	Sink        display.Sink

	// Target is the application's input path. Local events fed to
	// the client's recording handler are consumed there and only reach
	// Target after a round trip through the host.
	Target input.Handler

	Pool    *TaskPool
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Loopback runs a host and a client against each other in one
// process, for exercising the whole pipeline without a second machine.
type Loopback struct {
	host   *Host
	client *Client
	config LoopbackConfig
}

// NewLoopback creates the host. The client is created by Start once
// the host's address is known.
func NewLoopback(config LoopbackConfig) *Loopback {
	if config.ListenAddress == "" {
		config.ListenAddress = "127.0.0.1:0"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Pool == nil {
		config.Pool = NewTaskPool(0)
	}
	host := NewHost(HostConfig{
		ListenAddress: config.ListenAddress,
		Transport:     config.Transport,
		Source:        config.Source,
		Framebuffer:   config.Framebuffer,
		InputTarget:   config.Target,
		Pool:          config.Pool,
		Clock:         config.Clock,
		Logger:        config.Logger,
		Metrics:       config.Metrics,
	})
	return &Loopback{host: host, config: config}
}

// Start begins listening and creates the client.
func (l *Loopback) Start(ctx context.Context) error {
	if err := l.host.StartListening(ctx); err != nil {
		return err
	}
	client, err := NewClient(ClientConfig{
		Address:     l.host.Address(),
		Transport:   l.config.Transport,
		Framebuffer: l.config.Framebuffer,
		Sink:        l.config.Sink,
		InputTarget: l.config.Target,
		Pool:        l.config.Pool,
		Clock:       l.config.Clock,
		Logger:      l.config.Logger,
		Metrics:     l.config.Metrics,
	})
	if err != nil {
		l.host.Close()
		return fmt.Errorf("starting loopback client: %w", err)
	}
	client.RecordingHandler().SetConsumeInput(true)
	l.client = client
	return nil
}

// Host returns the hosting side.
func (l *Loopback) Host() *Host { return l.host }

// Client returns the viewing side, or nil before Start.
func (l *Loopback) Client() *Client { return l.client }

// IsConnected reports whether both sides hold a live connection.
func (l *Loopback) IsConnected() bool {
	return l.client != nil && l.client.IsConnected() && l.host.IsConnected()
}

// Tick ticks the client and then the host. Client recording is off
// while the host replays, so events the application routes back
// through the client's handler are not sent around again.
func (l *Loopback) Tick(dt time.Duration) {
	if l.client == nil {
		l.host.Tick(dt)
		return
	}
	l.client.Tick(dt)
	handler := l.client.RecordingHandler()
	handler.SetRecording(false)
	l.host.Tick(dt)
	handler.SetRecording(true)
}

// Close closes both sides.
func (l *Loopback) Close() error {
	var clientErr error
	if l.client != nil {
		clientErr = l.client.Close()
	}
	return errors.Join(clientErr, l.host.Close())
}
