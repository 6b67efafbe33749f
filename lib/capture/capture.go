// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture produces the frames a host streams to its client.
//
// A [Source] is polled, not pushed: the framebuffer channel asks for
// the latest frame when its pacing interval elapses, and frames
// produced in between are simply overwritten. [PatternSource]
// synthesizes test frames; [DirectorySource] follows an image file
// that another program keeps rewriting, such as a screenshot tool or
// a renderer writing its output to disk.
package capture

import (
	"context"
	"sync"
)

// Frame is one captured image as tightly packed RGBA.
type Frame struct {
	Width  int
	Height int
	Pixels []byte

	// Sequence increases by one for each frame a source produces.
	Sequence uint64
}

// Source produces frames.
type Source interface {
	// Start begins capturing. It returns an error if the source cannot
	// run; capture stops when ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends capturing and waits for the source's goroutines.
	// Calling Stop more than once, or without Start, is harmless.
	Stop()

	// LatestFrame returns the newest frame not yet returned. ok is
	// false when nothing new has been captured since the last call.
	// The caller owns the returned pixel buffer.
	LatestFrame() (frame Frame, ok bool)
}

// latestFrame is a single-slot mailbox holding the newest frame.
type latestFrame struct {
	mu       sync.Mutex
	frame    Frame
	fresh    bool
	sequence uint64
}

func (l *latestFrame) publish(width, height int, pixels []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sequence++
	l.frame = Frame{Width: width, Height: height, Pixels: pixels, Sequence: l.sequence}
	l.fresh = true
}

func (l *latestFrame) take() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.fresh {
		return Frame{}, false
	}
	l.fresh = false
	frame := l.frame
	l.frame.Pixels = nil
	return frame, true
}

// runner owns the stop signal and goroutine lifetime shared by the
// sources.
type runner struct {
	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// begin returns false if the runner is already started.
func (r *runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return false
	}
	r.started = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	return true
}

func (r *runner) end() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}
