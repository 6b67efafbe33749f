// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/bureau-foundation/remotesession/lib/clock"
)

// PatternConfig configures a PatternSource.
type PatternConfig struct {
	Width  int
	Height int

	// Color fills every pixel when Animate is false. Alpha is copied
	// as given.
	Color color.RGBA

	// Animate draws a gradient that scrolls one column per frame
	// instead of a solid fill.
	Animate bool

	// Interval between frames. Defaults to 1/30 s.
	Interval time.Duration

	Clock clock.Clock
}

// PatternSource generates synthetic frames on a fixed interval.
type PatternSource struct {
	config PatternConfig
	latest latestFrame
	runner runner
}

// NewPatternSource returns an unstarted source.
func NewPatternSource(config PatternConfig) *PatternSource {
	if config.Interval <= 0 {
		config.Interval = time.Second / 30
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &PatternSource{config: config}
}

// Start publishes the first frame immediately and then one per
// interval.
func (p *PatternSource) Start(ctx context.Context) error {
	if p.config.Width <= 0 || p.config.Height <= 0 {
		return fmt.Errorf("pattern source: invalid size %dx%d", p.config.Width, p.config.Height)
	}
	if !p.runner.begin() {
		return errors.New("pattern source: already started")
	}
	p.latest.publish(p.config.Width, p.config.Height, p.render(0))

	ticker := p.config.Clock.NewTicker(p.config.Interval)
	stop, done := p.runner.stop, p.runner.done
	go func() {
		defer close(done)
		defer ticker.Stop()
		for index := 1; ; index++ {
			select {
			case <-ticker.C:
				p.latest.publish(p.config.Width, p.config.Height, p.render(index))
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends frame generation.
func (p *PatternSource) Stop() { p.runner.end() }

// LatestFrame implements Source.
func (p *PatternSource) LatestFrame() (Frame, bool) { return p.latest.take() }

func (p *PatternSource) render(index int) []byte {
	width, height := p.config.Width, p.config.Height
	pixels := make([]byte, width*height*4)
	fill := p.config.Color
	for y := range height {
		for x := range width {
			offset := (y*width + x) * 4
			if p.config.Animate {
				pixels[offset] = byte((x + index) * 255 / width)
				pixels[offset+1] = byte(y * 255 / height)
				pixels[offset+2] = fill.B
				pixels[offset+3] = 255
				continue
			}
			pixels[offset] = fill.R
			pixels[offset+1] = fill.G
			pixels[offset+2] = fill.B
			pixels[offset+3] = fill.A
		}
	}
	return pixels
}
