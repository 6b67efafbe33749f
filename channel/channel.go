// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"sync"
	"time"

	"github.com/bureau-foundation/remotesession/backchannel"
	"github.com/bureau-foundation/remotesession/lib/clock"
)

// Channel is one typed stream within a session.
type Channel interface {
	// Type is the stable channel identifier, for example
	// "rs.framebuffer".
	Type() string

	// Tick advances the channel on the session's main goroutine.
	Tick(dt time.Duration)

	// Close releases the channel. It may block briefly while
	// background work drains.
	Close() error
}

// Mode selects which direction a channel carries.
type Mode int

const (
	ModeSend Mode = iota
	ModeReceive
)

func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// ErrTeardownTimeout is returned by Close when background tasks are
// still running after the teardown timeout.
var ErrTeardownTimeout = errors.New("timed out waiting for background tasks")

// DefaultTeardownTimeout bounds how long Close waits for in-flight
// encode and decode tasks.
const DefaultTeardownTimeout = 2 * time.Second

// Handle is a session's reference to its current connection. Channels
// keep the Handle and resolve the connection for each operation. After
// Invalidate, Acquire reports the connection as gone.
type Handle struct {
	mu         sync.RWMutex
	connection *backchannel.Connection
}

// NewHandle returns a handle resolving to connection.
func NewHandle(connection *backchannel.Connection) *Handle {
	return &Handle{connection: connection}
}

// Acquire returns the connection if it is still held and connected.
func (h *Handle) Acquire() (*backchannel.Connection, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	connection := h.connection
	h.mu.RUnlock()
	if connection == nil || !connection.IsConnected() {
		return nil, false
	}
	return connection, true
}

// Invalidate drops the connection. Subsequent Acquire calls fail.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	h.connection = nil
	h.mu.Unlock()
}

// Executor runs tasks off the calling goroutine. TryGo returns false,
// without running task, when the executor is saturated.
type Executor interface {
	TryGo(task func()) bool
}

// goExecutor starts a goroutine per task and never refuses.
type goExecutor struct{}

func (goExecutor) TryGo(task func()) bool {
	go task()
	return true
}

// inflight counts tasks submitted to an executor so Close can wait for
// them.
type inflight struct {
	mu    sync.Mutex
	count int
	idle  chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == 0 {
		f.idle = make(chan struct{})
	}
	f.count++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count--
	if f.count == 0 {
		close(f.idle)
	}
}

func (f *inflight) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// wait blocks until no tasks are in flight or timeout elapses on clk.
func (f *inflight) wait(clk clock.Clock, timeout time.Duration) error {
	f.mu.Lock()
	if f.count == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-clk.After(timeout):
		return ErrTeardownTimeout
	}
}

// submit runs task on executor, tracking it in f. It reports whether
// the executor accepted the task.
func (f *inflight) submit(executor Executor, task func()) bool {
	f.add()
	accepted := executor.TryGo(func() {
		defer f.done()
		task()
	})
	if !accepted {
		f.done()
	}
	return accepted
}
