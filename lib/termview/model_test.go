// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package termview

import (
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
)

type fakeViewer struct {
	ticks  []time.Duration
	image  display.Image
	status string
}

func (v *fakeViewer) Tick(dt time.Duration) { v.ticks = append(v.ticks, dt) }

func (v *fakeViewer) VisibleImage() (display.Image, bool) { return v.image, v.image != nil }

func (v *fakeViewer) Status() string { return v.status }

type recorded struct {
	name string
	data []byte
}

func newRecordingModel(viewer Viewer) (Model, *[]recorded) {
	var events []recorded
	handler := input.NewRecordingHandler(input.RecordingConfig{})
	handler.SetRecordingWriter(input.WriterFunc(func(name string, data []byte) {
		events = append(events, recorded{name: name, data: data})
	}))
	return NewModel(Config{Viewer: viewer, Handler: handler}), &events
}

func update(t *testing.T, model Model, message tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, command := model.Update(message)
	return next.(Model), command
}

func names(events []recorded) []string {
	var result []string
	for _, event := range events {
		result = append(result, event.name)
	}
	return result
}

func TestTickDrivesViewer(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(time.Unix(100, 0))
	viewer := &fakeViewer{}
	model := NewModel(Config{Viewer: viewer, Clock: fake})
	if model.Init() == nil {
		t.Fatal("Init() = nil, want a tick command")
	}

	fake.Advance(20 * time.Millisecond)
	model, command := update(t, model, tickMsg{})
	if command == nil {
		t.Error("Update(tick) did not schedule the next tick")
	}
	fake.Advance(10 * time.Millisecond)
	update(t, model, tickMsg{})

	want := []time.Duration{20 * time.Millisecond, 10 * time.Millisecond}
	if !slices.Equal(viewer.ticks, want) {
		t.Errorf("viewer ticks = %v, want %v", viewer.ticks, want)
	}
}

func TestKeyPresses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		message   tea.KeyMsg
		wantNames []string
		wantCode  int32
	}{
		{
			name:      "letter",
			message:   tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}},
			wantNames: []string{input.EventKeyDown, input.EventKeyChar, input.EventKeyUp},
			wantCode:  'A',
		},
		{
			name:      "enter",
			message:   tea.KeyMsg{Type: tea.KeyEnter},
			wantNames: []string{input.EventKeyDown, input.EventKeyChar, input.EventKeyUp},
			wantCode:  13,
		},
		{
			name:      "arrow",
			message:   tea.KeyMsg{Type: tea.KeyLeft},
			wantNames: []string{input.EventKeyDown, input.EventKeyUp},
			wantCode:  37,
		},
		{
			name:    "unmapped",
			message: tea.KeyMsg{Type: tea.KeyF5},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			model, events := newRecordingModel(&fakeViewer{})
			update(t, model, test.message)

			if got := names(*events); !slices.Equal(got, test.wantNames) {
				t.Fatalf("recorded %v, want %v", got, test.wantNames)
			}
			if len(*events) == 0 {
				return
			}
			var down input.KeyEvent
			if err := down.UnmarshalBinary((*events)[0].data); err != nil {
				t.Fatalf("UnmarshalBinary() error: %v", err)
			}
			if down.KeyCode != test.wantCode {
				t.Errorf("KeyCode = %d, want %d", down.KeyCode, test.wantCode)
			}
		})
	}
}

func TestPastedTextSendsEveryRune(t *testing.T) {
	t.Parallel()

	model, events := newRecordingModel(&fakeViewer{})
	update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé")})

	var characters []rune
	for _, event := range *events {
		if event.name != input.EventKeyChar {
			continue
		}
		var char input.KeyCharEvent
		if err := char.UnmarshalBinary(event.data); err != nil {
			t.Fatalf("UnmarshalBinary() error: %v", err)
		}
		characters = append(characters, char.Character)
	}
	if got := string(characters); got != "hé" {
		t.Errorf("characters = %q, want %q", got, "hé")
	}
}

func TestCtrlCQuits(t *testing.T) {
	t.Parallel()

	model, events := newRecordingModel(&fakeViewer{})
	_, command := update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if command == nil {
		t.Fatal("Update(ctrl+c) returned no command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("Update(ctrl+c) did not quit")
	}
	if len(*events) != 0 {
		t.Errorf("ctrl+c was forwarded: %v", names(*events))
	}
}

func TestMouseDragBecomesTouches(t *testing.T) {
	t.Parallel()

	model, events := newRecordingModel(&fakeViewer{})
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 100, Height: 51})

	// Motion without a press is ignored.
	model, _ = update(t, model, tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionMotion})
	model, _ = update(t, model, tea.MouseMsg{X: 50, Y: 25, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	model, _ = update(t, model, tea.MouseMsg{X: 75, Y: 25, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	update(t, model, tea.MouseMsg{X: 75, Y: 40, Action: tea.MouseActionRelease})

	want := []string{input.EventTouchStarted, input.EventTouchMoved, input.EventTouchEnded}
	if got := names(*events); !slices.Equal(got, want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	var started input.TouchEvent
	if err := started.UnmarshalBinary((*events)[0].data); err != nil {
		t.Fatalf("UnmarshalBinary() error: %v", err)
	}
	if want := (input.Vector2{X: 0.5, Y: 0.5}); started.Location != want {
		t.Errorf("normalized location = %v, want %v", started.Location, want)
	}
}

func TestPressOnStatusBarIgnored(t *testing.T) {
	t.Parallel()

	model, events := newRecordingModel(&fakeViewer{})
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 20, Height: 10})
	update(t, model, tea.MouseMsg{X: 3, Y: 9, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if len(*events) != 0 {
		t.Errorf("status bar press recorded %v", names(*events))
	}
}

func TestViewRendersHalfBlocks(t *testing.T) {
	t.Parallel()

	sink := &display.MemorySink{}
	image, err := sink.CreateImage(2, 2)
	if err != nil {
		t.Fatalf("CreateImage() error: %v", err)
	}
	pixels := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	if err := sink.Upload(image, pixels); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	viewer := &fakeViewer{image: image, status: "connected"}
	model := NewModel(Config{Viewer: viewer})
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 2, Height: 2})

	view := model.View()
	lines := strings.Split(view, "\n")
	if len(lines) != 2 {
		t.Fatalf("View() has %d lines, want 2", len(lines))
	}
	if got := strings.Count(lines[0], upperHalfBlock); got != 2 {
		t.Errorf("image row has %d half blocks, want 2", got)
	}
	if got := ansi.StringWidth(lines[1]); got != 2 {
		t.Errorf("status bar width = %d, want 2", got)
	}
	if view != model.View() {
		t.Error("View() changed without a new upload")
	}
}

func TestViewPlaceholderAndStatus(t *testing.T) {
	t.Parallel()

	viewer := &fakeViewer{status: "connecting to 192.0.2.1:1313, attempt 3"}
	model := NewModel(Config{Viewer: viewer})
	if got := model.View(); got != "" {
		t.Errorf("View() before a size = %q, want empty", got)
	}

	model, _ = update(t, model, tea.WindowSizeMsg{Width: 24, Height: 5})
	lines := strings.Split(model.View(), "\n")
	if len(lines) != 5 {
		t.Fatalf("View() has %d lines, want 5", len(lines))
	}
	if !strings.Contains(strings.Join(lines[:4], "\n"), "waiting for frames") {
		t.Error("placeholder missing while no image is visible")
	}
	status := lines[4]
	if got := ansi.StringWidth(status); got != 24 {
		t.Errorf("status bar width = %d, want 24", got)
	}
	if !strings.Contains(ansi.Strip(status), "…") {
		t.Errorf("long status %q was not truncated", ansi.Strip(status))
	}
}

func TestRenderHalfBlocksScales(t *testing.T) {
	t.Parallel()

	// A 4x4 image into 2x1 cells samples every other column.
	pixels := make([]byte, 4*4*4)
	lines := renderHalfBlocks(pixels, 4, 4, 2, 1)
	if len(lines) != 1 {
		t.Fatalf("renderHalfBlocks() = %d lines, want 1", len(lines))
	}
	if got := strings.Count(lines[0], upperHalfBlock); got != 2 {
		t.Errorf("row has %d half blocks, want 2", got)
	}
	if got := renderHalfBlocks(pixels[:3], 4, 4, 2, 1); got != nil {
		t.Errorf("short pixel buffer rendered %v, want nil", got)
	}
}
