// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package termview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
)

// DefaultFrameInterval ticks the session at 60 Hz.
const DefaultFrameInterval = time.Second / 60

// Viewer is the session being shown.
type Viewer interface {
	// Tick advances the session. The model calls it from the program's
	// update loop, which makes that loop the session's tick goroutine.
	Tick(dt time.Duration)

	// VisibleImage returns the frame currently on display.
	VisibleImage() (display.Image, bool)

	// Status is a one-line description for the status bar.
	Status() string
}

// Config configures a Model.
type Config struct {
	Viewer Viewer

	// Handler receives local input. Its viewport is kept equal to the
	// image area in cells so touches are normalized against it.
	Handler *input.RecordingHandler

	FrameInterval time.Duration
	Clock         clock.Clock
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

type tickMsg struct{}

// Model is the bubbletea model for the viewer.
type Model struct {
	viewer   Viewer
	handler  *input.RecordingHandler
	interval time.Duration
	clock    clock.Clock

	lastTick time.Time
	width    int
	height   int
	touching bool

	// cache survives the value copies bubbletea makes of the model.
	cache *frameCache
}

// NewModel returns a model for config.Viewer.
func NewModel(config Config) Model {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return Model{
		viewer:   config.Viewer,
		handler:  config.Handler,
		interval: config.FrameInterval,
		clock:    config.Clock,
		lastTick: config.Clock.Now(),
		cache:    &frameCache{},
	}
}

func (model Model) scheduleTick() tea.Cmd {
	return tea.Tick(model.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init starts the tick timer.
func (model Model) Init() tea.Cmd {
	return model.scheduleTick()
}

// imageRows is the number of text rows above the status bar.
func (model Model) imageRows() int {
	return max(model.height-1, 0)
}

// Update handles timer, window, key, and mouse messages.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tickMsg:
		now := model.clock.Now()
		model.viewer.Tick(now.Sub(model.lastTick))
		model.lastTick = now
		return model, model.scheduleTick()

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		if model.handler != nil {
			model.handler.SetViewportSize(input.Vector2{X: float32(model.width), Y: float32(model.imageRows())})
		}

	case tea.KeyMsg:
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		if model.handler != nil {
			for _, press := range keyPresses(message) {
				press.send(model.handler)
			}
		}

	case tea.MouseMsg:
		model.handleMouse(message)
	}
	return model, nil
}

// handleMouse turns left-button drags over the image into touches.
func (model *Model) handleMouse(message tea.MouseMsg) {
	if model.handler == nil {
		return
	}
	event := input.TouchEvent{Location: input.Vector2{X: float32(message.X), Y: float32(message.Y)}}
	switch message.Action {
	case tea.MouseActionPress:
		if message.Button != tea.MouseButtonLeft || message.Y >= model.imageRows() {
			return
		}
		model.touching = true
		model.handler.OnTouchStarted(event)
	case tea.MouseActionMotion:
		if model.touching {
			model.handler.OnTouchMoved(event)
		}
	case tea.MouseActionRelease:
		if model.touching {
			model.touching = false
			model.handler.OnTouchEnded(event)
		}
	}
}

// View renders the image area and the status bar.
func (model Model) View() string {
	if model.width <= 0 || model.height <= 0 {
		return ""
	}
	rows := model.imageRows()
	status := model.viewer.Status()

	var lines []string
	image, ok := model.viewer.VisibleImage()
	if ok {
		status = fmt.Sprintf("%s  %dx%d", status, image.Width(), image.Height())
		if readable, canRead := image.(pixelImage); canRead {
			lines = model.cache.render(readable, model.width, rows)
		}
	}
	if lines == nil && rows > 0 {
		placeholder := lipgloss.Place(model.width, rows, lipgloss.Center, lipgloss.Center,
			placeholderStyle.Render("waiting for frames"))
		lines = strings.Split(placeholder, "\n")
	}

	status = ansi.Truncate(status+"  ctrl+c quits", model.width, "…")
	lines = append(lines[:len(lines):len(lines)], statusStyle.Width(model.width).Render(status))
	return strings.Join(lines, "\n")
}
