// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package display is where received frames end up: a sink that
// allocates displayable images and accepts pixel uploads into them.
package display

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Image is a displayable image allocated by a Sink.
type Image interface {
	ID() uint64
	Width() int
	Height() int
}

// Sink allocates images and uploads pixels into them.
type Sink interface {
	// CreateImage allocates a width x height image.
	CreateImage(width, height int) (Image, error)

	// Upload replaces the contents of image with tightly packed RGBA
	// pixels. The image must come from this sink and pixels must be
	// exactly width*height*4 bytes. Upload does not retain pixels.
	Upload(image Image, pixels []byte) error
}

// ErrForeignImage is returned by Upload for an image another sink
// created.
var ErrForeignImage = errors.New("image was not created by this sink")

// MemoryImage is an Image held in process memory.
type MemoryImage struct {
	id     uint64
	width  int
	height int

	mu       sync.RWMutex
	pixels   []byte
	revision uint64
}

// ID returns the image's identifier, unique within its sink.
func (m *MemoryImage) ID() uint64 { return m.id }

// Width returns the image width in pixels.
func (m *MemoryImage) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *MemoryImage) Height() int { return m.height }

// Pixels returns a copy of the current contents.
func (m *MemoryImage) Pixels() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.pixels...)
}

// Revision counts completed uploads.
func (m *MemoryImage) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// MemorySink creates MemoryImages. The zero value is ready to use.
type MemorySink struct {
	nextID  atomic.Uint64
	created atomic.Int64
}

// CreateImage implements Sink.
func (s *MemorySink) CreateImage(width, height int) (Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("create image: invalid size %dx%d", width, height)
	}
	s.created.Add(1)
	return &MemoryImage{
		id:     s.nextID.Add(1),
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
	}, nil
}

// Upload implements Sink.
func (s *MemorySink) Upload(image Image, pixels []byte) error {
	memory, ok := image.(*MemoryImage)
	if !ok {
		return fmt.Errorf("upload: %w", ErrForeignImage)
	}
	if want := memory.width * memory.height * 4; len(pixels) != want {
		return fmt.Errorf("upload: %d bytes for %dx%d image, want %d", len(pixels), memory.width, memory.height, want)
	}
	memory.mu.Lock()
	defer memory.mu.Unlock()
	copy(memory.pixels, pixels)
	memory.revision++
	return nil
}

// Created returns how many images the sink has allocated.
func (s *MemorySink) Created() int { return int(s.created.Load()) }
