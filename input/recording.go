// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"encoding"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/remotesession/lib/metrics"
)

// Writer receives serialized events from a recording handler.
type Writer interface {
	RecordMessage(name string, data []byte)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(name string, data []byte)

// RecordMessage calls f.
func (f WriterFunc) RecordMessage(name string, data []byte) { f(name, data) }

// MultiWriter fans each recorded event out to every writer in order.
type MultiWriter []Writer

// RecordMessage forwards to each writer.
func (m MultiWriter) RecordMessage(name string, data []byte) {
	for _, writer := range m {
		writer.RecordMessage(name, data)
	}
}

// Scheduler runs work on the application's main loop.
type Scheduler interface {
	Post(task func())
}

// RecordingConfig configures a RecordingHandler.
type RecordingConfig struct {
	// Target is the application input path events are forwarded to.
	// Nil drops forwarded events and reports them unhandled.
	Target Handler

	// Scheduler runs replayed events. Nil replays inline on the
	// goroutine calling PlayMessage.
	Scheduler Scheduler

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// RecordingHandler intercepts input events for recording and replays
// recorded events. See the package documentation for the event flow.
// All methods are safe for concurrent use.
type RecordingHandler struct {
	target    Handler
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// players is built once by NewRecordingHandler and never modified.
	players map[string]func(data []byte) (func(), error)

	mu        sync.Mutex
	writer    Writer
	recording bool
	consume   bool
	viewport  Vector2
	window    Rect
}

// NewRecordingHandler returns a handler forwarding to config.Target.
// Recording is enabled but has no effect until a writer is set.
func NewRecordingHandler(config RecordingConfig) *RecordingHandler {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &RecordingHandler{
		target:    config.Target,
		scheduler: config.Scheduler,
		logger:    logger,
		metrics:   config.Metrics,
		recording: true,
	}
	h.players = map[string]func([]byte) (func(), error){
		EventKeyChar: func(data []byte) (func(), error) {
			var event KeyCharEvent
			err := event.UnmarshalBinary(data)
			return func() { h.OnKeyChar(event) }, err
		},
		EventKeyDown: func(data []byte) (func(), error) {
			var event KeyEvent
			err := event.UnmarshalBinary(data)
			return func() { h.OnKeyDown(event) }, err
		},
		EventKeyUp: func(data []byte) (func(), error) {
			var event KeyEvent
			err := event.UnmarshalBinary(data)
			return func() { h.OnKeyUp(event) }, err
		},
		EventTouchStarted: h.touchPlayer(h.OnTouchStarted),
		EventTouchMoved:   h.touchPlayer(h.OnTouchMoved),
		EventTouchEnded:   h.touchPlayer(h.OnTouchEnded),
	}
	return h
}

func (h *RecordingHandler) touchPlayer(entry func(TouchEvent) bool) func([]byte) (func(), error) {
	return func(data []byte) (func(), error) {
		var event TouchEvent
		err := event.UnmarshalBinary(data)
		return func() {
			h.mu.Lock()
			window := h.window
			h.mu.Unlock()
			event.Location = window.Denormalize(event.Location)
			entry(event)
		}, err
	}
}

// SetRecordingWriter sets the destination for recorded events. Nil
// stops recording.
func (h *RecordingHandler) SetRecordingWriter(writer Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writer = writer
}

// SetRecording enables or disables recording without detaching the
// writer. Loopback sessions disable it while the host replays events
// into the same process.
func (h *RecordingHandler) SetRecording(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recording = enabled
}

// IsRecording reports whether events are currently being recorded.
func (h *RecordingHandler) IsRecording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writer != nil && h.recording
}

// SetConsumeInput makes every event report handled without reaching
// the target.
func (h *RecordingHandler) SetConsumeInput(consume bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consume = consume
}

// SetViewportSize sets the local viewport size touch locations are
// normalized against when recorded.
func (h *RecordingHandler) SetViewportSize(size Vector2) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewport = size
}

// SetPlaybackWindow sets the window replayed touch locations are mapped
// onto. The zero Rect leaves locations normalized.
func (h *RecordingHandler) SetPlaybackWindow(window Rect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.window = window
}

// PlayMessage decodes a recorded event and schedules its replay. It
// returns false, after logging, when name is not a known event or the
// payload is malformed.
func (h *RecordingHandler) PlayMessage(name string, data []byte) bool {
	player, ok := h.players[name]
	if !ok {
		h.logger.Warn("no playback handler for event", "event", name)
		return false
	}
	replay, err := player(data)
	if err != nil {
		h.logger.Warn("dropping malformed event", "event", name, "bytes", len(data), "error", err)
		return false
	}
	h.metrics.InputEvent(name, metrics.DirectionPlayed)
	if h.scheduler == nil {
		replay()
	} else {
		h.scheduler.Post(replay)
	}
	return true
}

// record serializes event when recording, then reports whether the
// event is consumed locally.
func (h *RecordingHandler) record(name string, event encoding.BinaryMarshaler) (consumed bool) {
	h.mu.Lock()
	writer := h.writer
	if !h.recording {
		writer = nil
	}
	consumed = h.consume
	h.mu.Unlock()

	if writer != nil {
		data, err := event.MarshalBinary()
		if err != nil {
			h.logger.Error("encoding input event", "event", name, "error", err)
			return consumed
		}
		writer.RecordMessage(name, data)
		h.metrics.InputEvent(name, metrics.DirectionRecorded)
	}
	return consumed
}

func (h *RecordingHandler) normalized(event TouchEvent) TouchEvent {
	h.mu.Lock()
	viewport := h.viewport
	h.mu.Unlock()
	event.Location = Normalize(event.Location, viewport)
	return event
}

// OnKeyChar implements Handler.
func (h *RecordingHandler) OnKeyChar(event KeyCharEvent) bool {
	if h.record(EventKeyChar, event) {
		return true
	}
	return h.target != nil && h.target.OnKeyChar(event)
}

// OnKeyDown implements Handler.
func (h *RecordingHandler) OnKeyDown(event KeyEvent) bool {
	if h.record(EventKeyDown, event) {
		return true
	}
	return h.target != nil && h.target.OnKeyDown(event)
}

// OnKeyUp implements Handler.
func (h *RecordingHandler) OnKeyUp(event KeyEvent) bool {
	if h.record(EventKeyUp, event) {
		return true
	}
	return h.target != nil && h.target.OnKeyUp(event)
}

// OnTouchStarted implements Handler. The recorded location is
// normalized; the forwarded location is not.
func (h *RecordingHandler) OnTouchStarted(event TouchEvent) bool {
	if h.record(EventTouchStarted, h.normalized(event)) {
		return true
	}
	return h.target != nil && h.target.OnTouchStarted(event)
}

// OnTouchMoved implements Handler.
func (h *RecordingHandler) OnTouchMoved(event TouchEvent) bool {
	if h.record(EventTouchMoved, h.normalized(event)) {
		return true
	}
	return h.target != nil && h.target.OnTouchMoved(event)
}

// OnTouchEnded implements Handler.
func (h *RecordingHandler) OnTouchEnded(event TouchEvent) bool {
	if h.record(EventTouchEnded, h.normalized(event)) {
		return true
	}
	return h.target != nil && h.target.OnTouchEnded(event)
}

// PlaybackWriter adapts a handler so that events written to it are
// replayed through PlayMessage.
func PlaybackWriter(handler *RecordingHandler) Writer {
	return WriterFunc(func(name string, data []byte) {
		handler.PlayMessage(name, data)
	})
}
