// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package termview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/remotesession/lib/display"
)

// upperHalfBlock paints its foreground over the top half of a cell
// and leaves the background showing in the bottom half.
const upperHalfBlock = "▀"

// pixelImage is a display image whose pixels can be read back.
type pixelImage interface {
	display.Image
	Pixels() []byte
}

// revisioned images report how many uploads they have taken, which
// lets a rendered frame be reused until the image changes.
type revisioned interface {
	Revision() uint64
}

type frameKey struct {
	id       uint64
	revision uint64
	columns  int
	rows     int
}

type frameCache struct {
	key   frameKey
	lines []string
}

// render returns the lines for image scaled to columns x rows cells,
// reusing the previous result when nothing changed.
func (c *frameCache) render(image pixelImage, columns, rows int) []string {
	key := frameKey{id: image.ID(), columns: columns, rows: rows}
	if r, ok := image.(revisioned); ok {
		key.revision = r.Revision()
		if c.lines != nil && c.key == key {
			return c.lines
		}
	}
	c.key = key
	c.lines = renderHalfBlocks(image.Pixels(), image.Width(), image.Height(), columns, rows)
	return c.lines
}

// renderHalfBlocks samples RGBA pixels nearest-neighbor into a grid of
// columns x rows cells, two vertical samples per cell. Runs of cells
// with the same colors share one styled span.
func renderHalfBlocks(pixels []byte, width, height, columns, rows int) []string {
	if width <= 0 || height <= 0 || columns <= 0 || rows <= 0 || len(pixels) < width*height*4 {
		return nil
	}
	sample := func(x, y int) lipgloss.Color {
		offset := (y*width + x) * 4
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", pixels[offset], pixels[offset+1], pixels[offset+2]))
	}

	lines := make([]string, rows)
	for row := range rows {
		top := (2 * row) * height / (2 * rows)
		bottom := (2*row + 1) * height / (2 * rows)

		var line strings.Builder
		var runTop, runBottom lipgloss.Color
		runLength := 0
		flush := func() {
			if runLength == 0 {
				return
			}
			style := lipgloss.NewStyle().Foreground(runTop).Background(runBottom)
			line.WriteString(style.Render(strings.Repeat(upperHalfBlock, runLength)))
			runLength = 0
		}
		for column := range columns {
			x := column * width / columns
			upper, lower := sample(x, top), sample(x, bottom)
			if runLength > 0 && (upper != runTop || lower != runBottom) {
				flush()
			}
			runTop, runBottom = upper, lower
			runLength++
		}
		flush()
		lines[row] = line.String()
	}
	return lines
}
