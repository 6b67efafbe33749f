// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/codec"
)

// Record is one event in a recorded session file.
type Record struct {
	// Offset is the time since the recording started.
	Offset time.Duration `cbor:"offset"`
	Name   string        `cbor:"name"`
	// Payload is the serialized event, as passed to Writer.
	Payload []byte `cbor:"payload"`
}

// SessionRecorder writes recorded events to a stream as a sequence of
// CBOR-encoded Records. It implements Writer and is safe for
// concurrent use.
type SessionRecorder struct {
	clock clock.Clock
	start time.Time

	mu      sync.Mutex
	encoder *codec.Encoder
	count   int
	err     error
}

// NewSessionRecorder starts a recording on w. Offsets are measured
// from now on clk.
func NewSessionRecorder(w io.Writer, clk clock.Clock) *SessionRecorder {
	if clk == nil {
		clk = clock.Real()
	}
	return &SessionRecorder{
		clock:   clk,
		start:   clk.Now(),
		encoder: codec.NewEncoder(w),
	}
}

// RecordMessage appends one record. After the first write error,
// records are discarded and Err reports the failure.
func (r *SessionRecorder) RecordMessage(name string, data []byte) {
	record := Record{
		Offset:  r.clock.Since(r.start),
		Name:    name,
		Payload: data,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.encoder.Encode(record); err != nil {
		r.err = fmt.Errorf("write record %d: %w", r.count, err)
		return
	}
	r.count++
}

// Count returns the number of records written.
func (r *SessionRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error, if any.
func (r *SessionRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// SessionPlayer replays a recorded session into a Writer, preserving
// the recorded spacing between events.
type SessionPlayer struct {
	decoder *codec.Decoder
	clock   clock.Clock
}

// NewSessionPlayer reads records from r.
func NewSessionPlayer(r io.Reader, clk clock.Clock) *SessionPlayer {
	if clk == nil {
		clk = clock.Real()
	}
	return &SessionPlayer{decoder: codec.NewDecoder(r), clock: clk}
}

// Play writes each record to target once its offset has elapsed since
// Play was called. It returns the number of records played, stopping
// early if ctx is cancelled or a record cannot be decoded.
func (p *SessionPlayer) Play(ctx context.Context, target Writer) (int, error) {
	start := p.clock.Now()
	played := 0
	for {
		var record Record
		if err := p.decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return played, nil
			}
			return played, fmt.Errorf("read record %d: %w", played, err)
		}

		if wait := record.Offset - p.clock.Since(start); wait > 0 {
			select {
			case <-p.clock.After(wait):
			case <-ctx.Done():
				return played, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return played, err
		}

		target.RecordMessage(record.Name, record.Payload)
		played++
	}
}
