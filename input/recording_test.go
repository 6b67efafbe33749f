// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"math"
	"sync"
	"testing"
)

// appHandler records the events reaching the application.
type appHandler struct {
	mu       sync.Mutex
	keyChars []KeyCharEvent
	keyDowns []KeyEvent
	keyUps   []KeyEvent
	touches  []TouchEvent
	handled  bool
}

func (a *appHandler) OnKeyChar(event KeyCharEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyChars = append(a.keyChars, event)
	return a.handled
}

func (a *appHandler) OnKeyDown(event KeyEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyDowns = append(a.keyDowns, event)
	return a.handled
}

func (a *appHandler) OnKeyUp(event KeyEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyUps = append(a.keyUps, event)
	return a.handled
}

func (a *appHandler) touch(event TouchEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touches = append(a.touches, event)
	return a.handled
}

func (a *appHandler) OnTouchStarted(event TouchEvent) bool { return a.touch(event) }
func (a *appHandler) OnTouchMoved(event TouchEvent) bool { return a.touch(event) }
func (a *appHandler) OnTouchEnded(event TouchEvent) bool { return a.touch(event) }

type recorded struct {
	name string
	data []byte
}

type captureWriter struct{ records []recorded }

func (c *captureWriter) RecordMessage(name string, data []byte) {
	c.records = append(c.records, recorded{name: name, data: data})
}

// queueScheduler holds posted tasks until run is called.
type queueScheduler struct{ tasks []func() }

func (q *queueScheduler) Post(task func()) { q.tasks = append(q.tasks, task) }

func (q *queueScheduler) run() {
	tasks := q.tasks
	q.tasks = nil
	for _, task := range tasks {
		task()
	}
}

func TestRecordingForwardsAndRecords(t *testing.T) {
	t.Parallel()

	app := &appHandler{handled: true}
	writer := &captureWriter{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})
	if handler.IsRecording() {
		t.Error("IsRecording() = true with no writer")
	}
	handler.SetRecordingWriter(writer)
	if !handler.IsRecording() {
		t.Error("IsRecording() = false with a writer")
	}

	event := KeyEvent{KeyCode: 65, CharacterCode: 'A'}
	if !handler.OnKeyDown(event) {
		t.Error("OnKeyDown() = false, want the target's result")
	}
	if len(app.keyDowns) != 1 || app.keyDowns[0] != event {
		t.Errorf("target received %v, want [%v]", app.keyDowns, event)
	}
	if len(writer.records) != 1 || writer.records[0].name != EventKeyDown {
		t.Fatalf("recorded %v, want one %s", writer.records, EventKeyDown)
	}
	var decoded KeyEvent
	if err := decoded.UnmarshalBinary(writer.records[0].data); err != nil || decoded != event {
		t.Errorf("recorded payload decodes to %+v, %v, want %+v", decoded, err, event)
	}
}

func TestConsumeInput(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	writer := &captureWriter{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})
	handler.SetRecordingWriter(writer)
	handler.SetConsumeInput(true)

	if !handler.OnKeyChar(KeyCharEvent{Character: 'q'}) {
		t.Error("OnKeyChar() = false while consuming, want true")
	}
	if !handler.OnTouchStarted(TouchEvent{}) {
		t.Error("OnTouchStarted() = false while consuming, want true")
	}
	if len(app.keyChars) != 0 || len(app.touches) != 0 {
		t.Error("consumed events reached the target")
	}
	if len(writer.records) != 2 {
		t.Errorf("recorded %d events, want 2", len(writer.records))
	}
}

func TestSetRecordingFalseSuppressesWriter(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	writer := &captureWriter{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})
	handler.SetRecordingWriter(writer)
	handler.SetRecording(false)

	if handler.IsRecording() {
		t.Error("IsRecording() = true after SetRecording(false)")
	}
	handler.OnKeyUp(KeyEvent{KeyCode: 1})
	if len(writer.records) != 0 {
		t.Errorf("recorded %d events while disabled, want 0", len(writer.records))
	}
	if len(app.keyUps) != 1 {
		t.Errorf("target received %d key ups, want 1", len(app.keyUps))
	}
}

func TestNilTargetReportsUnhandled(t *testing.T) {
	t.Parallel()

	handler := NewRecordingHandler(RecordingConfig{})
	if handler.OnKeyDown(KeyEvent{}) {
		t.Error("OnKeyDown() with no target = true, want false")
	}
}

func TestTouchNormalizedWhenRecorded(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	writer := &captureWriter{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})
	handler.SetRecordingWriter(writer)
	handler.SetViewportSize(Vector2{X: 800, Y: 600})

	handler.OnTouchMoved(TouchEvent{Location: Vector2{X: 400, Y: 150}, TouchIndex: 1})

	var recordedTouch TouchEvent
	if err := recordedTouch.UnmarshalBinary(writer.records[0].data); err != nil {
		t.Fatalf("UnmarshalBinary() error: %v", err)
	}
	if recordedTouch.Location != (Vector2{X: 0.5, Y: 0.25}) {
		t.Errorf("recorded location = %v, want {0.5 0.25}", recordedTouch.Location)
	}
	if app.touches[0].Location != (Vector2{X: 400, Y: 150}) {
		t.Errorf("forwarded location = %v, want the original {400 150}", app.touches[0].Location)
	}
}

func TestTouchCoordinateRoundTrip(t *testing.T) {
	t.Parallel()

	sizes := []Vector2{{X: 1920, Y: 1080}, {X: 64, Y: 48}, {X: 1, Y: 1}, {X: 333, Y: 777}}
	locations := []Vector2{{X: 0, Y: 0}, {X: 12.5, Y: 7.25}, {X: 63, Y: 47}, {X: 1919.75, Y: 1079.5}}
	for _, size := range sizes {
		for _, location := range locations {
			normalized := Normalize(location, size)
			back := Rect{Size: size}.Denormalize(normalized)
			if math.Abs(float64(back.X-location.X)) > 1e-3 || math.Abs(float64(back.Y-location.Y)) > 1e-3 {
				t.Errorf("round trip of %v through %v = %v", location, size, back)
			}
		}
	}
}

func TestNormalizePassThrough(t *testing.T) {
	t.Parallel()

	location := Vector2{X: 10, Y: 20}
	if got := Normalize(location, Vector2{}); got != location {
		t.Errorf("Normalize() with zero viewport = %v, want %v", got, location)
	}
	if got := (Rect{}).Denormalize(location); got != location {
		t.Errorf("Denormalize() with unset window = %v, want %v", got, location)
	}
	window := Rect{Origin: Vector2{X: 100, Y: 50}, Size: Vector2{X: 200, Y: 100}}
	if got := window.Denormalize(Vector2{X: 0.5, Y: 0.5}); got != (Vector2{X: 200, Y: 100}) {
		t.Errorf("Denormalize() = %v, want {200 100}", got)
	}
}

func TestPlayMessageRunsOnScheduler(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	scheduler := &queueScheduler{}
	handler := NewRecordingHandler(RecordingConfig{Target: app, Scheduler: scheduler})

	data, _ := KeyEvent{KeyCode: 65, CharacterCode: 'A'}.MarshalBinary()
	if !handler.PlayMessage(EventKeyDown, data) {
		t.Fatal("PlayMessage() = false, want true")
	}
	if len(app.keyDowns) != 0 {
		t.Fatal("event replayed before the scheduler ran")
	}
	scheduler.run()

	want := KeyEvent{KeyCode: 65, CharacterCode: 'A', IsRepeat: false}
	if len(app.keyDowns) != 1 || app.keyDowns[0] != want {
		t.Errorf("target received %v, want [%+v]", app.keyDowns, want)
	}
}

func TestPlayMessageDenormalizesTouch(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})
	handler.SetPlaybackWindow(Rect{Origin: Vector2{X: 10, Y: 20}, Size: Vector2{X: 100, Y: 200}})

	data, _ := TouchEvent{Location: Vector2{X: 0.5, Y: 0.25}, TouchIndex: 3, ControllerID: 1}.MarshalBinary()
	for _, name := range []string{EventTouchStarted, EventTouchMoved, EventTouchEnded} {
		if !handler.PlayMessage(name, data) {
			t.Fatalf("PlayMessage(%s) = false, want true", name)
		}
	}
	if len(app.touches) != 3 {
		t.Fatalf("target received %d touches, want 3", len(app.touches))
	}
	want := TouchEvent{Location: Vector2{X: 60, Y: 70}, TouchIndex: 3, ControllerID: 1}
	for _, touch := range app.touches {
		if touch != want {
			t.Errorf("replayed touch = %+v, want %+v", touch, want)
		}
	}
}

func TestPlayMessageRejects(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	handler := NewRecordingHandler(RecordingConfig{Target: app})

	if handler.PlayMessage("OnGamepadButton", nil) {
		t.Error("PlayMessage(unknown) = true, want false")
	}
	if handler.PlayMessage(EventKeyDown, []byte{1}) {
		t.Error("PlayMessage(short payload) = true, want false")
	}
	if len(app.keyDowns) != 0 {
		t.Error("rejected messages reached the target")
	}

	// The handler keeps working after a rejection.
	data, _ := KeyCharEvent{Character: 'x'}.MarshalBinary()
	if !handler.PlayMessage(EventKeyChar, data) || len(app.keyChars) != 1 {
		t.Error("PlayMessage() after rejection did not replay")
	}
}

func TestPlaybackReentersRecordingPath(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{}
	handler := NewRecordingHandler(RecordingConfig{Target: &appHandler{}})
	handler.SetRecordingWriter(writer)

	data, _ := KeyCharEvent{Character: 'r'}.MarshalBinary()
	handler.PlayMessage(EventKeyChar, data)
	if len(writer.records) != 1 {
		t.Errorf("recorded %d events during playback, want 1", len(writer.records))
	}

	handler.SetRecording(false)
	handler.PlayMessage(EventKeyChar, data)
	if len(writer.records) != 1 {
		t.Errorf("recorded %d events with recording disabled, want 1", len(writer.records))
	}
}

func TestMultiWriterAndPlaybackWriter(t *testing.T) {
	t.Parallel()

	app := &appHandler{}
	first := &captureWriter{}
	replay := PlaybackWriter(NewRecordingHandler(RecordingConfig{Target: app}))
	writers := MultiWriter{first, replay}

	data, _ := KeyEvent{KeyCode: 9}.MarshalBinary()
	writers.RecordMessage(EventKeyUp, data)

	if len(first.records) != 1 {
		t.Errorf("first writer got %d records, want 1", len(first.records))
	}
	if len(app.keyUps) != 1 || app.keyUps[0].KeyCode != 9 {
		t.Errorf("playback writer delivered %v, want one key up 9", app.keyUps)
	}
}
