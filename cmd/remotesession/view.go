// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/session"
)

// clientView presents a client to the terminal viewer. tick is the
// function the viewer drives, which is the client's own Tick or, in
// loopback, the pair's.
type clientView struct {
	client *session.Client
	tick   func(time.Duration)
}

func (v clientView) Tick(dt time.Duration) { v.tick(dt) }

func (v clientView) VisibleImage() (display.Image, bool) {
	framebuffer, ok := v.client.FramebufferChannel()
	if !ok {
		return nil, false
	}
	return framebuffer.VisibleImage()
}

func (v clientView) Status() string {
	switch v.client.State() {
	case session.StateConnected:
		return "connected to " + v.client.Address()
	case session.StateConnecting:
		return fmt.Sprintf("connecting to %s (attempt %d)", v.client.Address(), v.client.Attempts())
	default:
		if v.client.Attempts() == 0 {
			return "idle"
		}
		return "disconnected from " + v.client.Address()
	}
}

// loggingTarget is the application input path of a headless host: it
// logs each replayed event and handles none.
type loggingTarget struct {
	logger *slog.Logger
}

func (t loggingTarget) OnKeyChar(event input.KeyCharEvent) bool {
	t.logger.Debug("input replayed", "event", input.EventKeyChar, "character", string(event.Character))
	return false
}

func (t loggingTarget) OnKeyDown(event input.KeyEvent) bool {
	t.logger.Info("input replayed", "event", input.EventKeyDown, "key_code", event.KeyCode)
	return false
}

func (t loggingTarget) OnKeyUp(event input.KeyEvent) bool {
	t.logger.Debug("input replayed", "event", input.EventKeyUp, "key_code", event.KeyCode)
	return false
}

func (t loggingTarget) OnTouchStarted(event input.TouchEvent) bool {
	t.logger.Info("input replayed", "event", input.EventTouchStarted, "x", event.Location.X, "y", event.Location.Y)
	return false
}

func (t loggingTarget) OnTouchMoved(event input.TouchEvent) bool {
	t.logger.Debug("input replayed", "event", input.EventTouchMoved, "x", event.Location.X, "y", event.Location.Y)
	return false
}

func (t loggingTarget) OnTouchEnded(event input.TouchEvent) bool {
	t.logger.Info("input replayed", "event", input.EventTouchEnded, "x", event.Location.X, "y", event.Location.Y)
	return false
}

// sessionRecording is a recorded input session backed by a file.
type sessionRecording struct {
	*input.SessionRecorder
	file *os.File
}

func newSessionRecording(file *os.File) *sessionRecording {
	return &sessionRecording{
		SessionRecorder: input.NewSessionRecorder(file, clock.Real()),
		file:            file,
	}
}

// Close closes the file and reports any write error the recorder saw.
func (r *sessionRecording) Close() error {
	return errors.Join(r.Err(), r.file.Close())
}
