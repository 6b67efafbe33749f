// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/remotesession/backchannel"
	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/osc"
)

const (
	// InputType identifies the input channel.
	InputType = "rs.input"

	// MessageHandlerPrefix is prepended to an event name to form its
	// address, for example "/MessageHandler/OnKeyDown".
	MessageHandlerPrefix = "/MessageHandler/"
)

// InputConfig describes an input channel.
type InputConfig struct {
	Handle *Handle
	Mode   Mode

	// Handler records local events (ModeSend) or replays remote ones
	// (ModeReceive). Required.
	Handler *input.RecordingHandler

	// Recorder, when set in ModeSend, also receives every recorded
	// event, for example a session file.
	Recorder input.Writer

	Logger *slog.Logger
}

// InputChannel forwards recorded input events from a client to a host.
type InputChannel struct {
	handle  *Handle
	mode    Mode
	handler *input.RecordingHandler
	logger  *slog.Logger
	closed  atomic.Bool
}

// NewInputChannel creates the channel. In ModeSend it becomes the
// handler's recording writer; in ModeReceive it registers for every
// address under MessageHandlerPrefix.
func NewInputChannel(config InputConfig) (*InputChannel, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("creating input channel: recording handler is required")
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	c := &InputChannel{
		handle:  config.Handle,
		mode:    config.Mode,
		handler: config.Handler,
		logger:  config.Logger.With("channel", InputType, "mode", config.Mode.String()),
	}

	switch config.Mode {
	case ModeSend:
		if config.Recorder != nil {
			c.handler.SetRecordingWriter(input.MultiWriter{c, config.Recorder})
		} else {
			c.handler.SetRecordingWriter(c)
		}
	case ModeReceive:
		connection, ok := c.handle.Acquire()
		if !ok {
			return nil, fmt.Errorf("creating input receiver: connection is not available")
		}
		connection.DispatchMap().GetAddressHandler(MessageHandlerPrefix).AddHandlerFunc(
			func(message *osc.Message, _ *backchannel.DispatchMap) { c.receive(message) })
	default:
		return nil, fmt.Errorf("creating input channel: unknown mode %d", config.Mode)
	}
	return c, nil
}

// Type returns InputType.
func (c *InputChannel) Type() string { return InputType }

// Mode returns the direction the channel was created with.
func (c *InputChannel) Mode() Mode { return c.mode }

// RecordingHandler returns the handler the channel records from or
// replays into.
func (c *InputChannel) RecordingHandler() *input.RecordingHandler { return c.handler }

// SetPlaybackWindow sets the window replayed touch events are mapped
// onto.
func (c *InputChannel) SetPlaybackWindow(window input.Rect) {
	c.handler.SetPlaybackWindow(window)
}

// RecordMessage sends one recorded event to the peer. Events recorded
// while no connection is available are dropped.
func (c *InputChannel) RecordMessage(name string, data []byte) {
	if c.closed.Load() {
		return
	}
	connection, ok := c.handle.Acquire()
	if !ok {
		return
	}
	message := osc.NewMessage(MessageHandlerPrefix + name).AddBlob(data)
	if err := connection.SendPacket(message); err != nil {
		c.logger.Debug("sending input event failed", "event", name, "error", err)
	}
}

func (c *InputChannel) receive(message *osc.Message) {
	if c.closed.Load() {
		return
	}
	name := strings.TrimPrefix(message.Address, MessageHandlerPrefix)
	data, err := message.ReadBlob()
	if err != nil {
		c.logger.Warn("dropping malformed input message", "message", message.String(), "error", err)
		return
	}
	c.handler.PlayMessage(name, data)
}

// Tick does nothing; input is event driven.
func (c *InputChannel) Tick(time.Duration) {}

// Close detaches the channel from its handler.
func (c *InputChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.mode == ModeSend {
		c.handler.SetRecordingWriter(nil)
	}
	return nil
}
