// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TaskPool runs image encode and decode work with bounded concurrency.
// It never queues: a task offered while every slot is busy is refused,
// and the caller drops the frame.
type TaskPool struct {
	group errgroup.Group
	limit int
}

// NewTaskPool returns a pool running at most limit tasks at once.
// A limit of zero or less uses the number of CPUs.
func NewTaskPool(limit int) *TaskPool {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	pool := &TaskPool{limit: limit}
	pool.group.SetLimit(limit)
	return pool
}

// TryGo starts task if a slot is free and reports whether it did.
func (p *TaskPool) TryGo(task func()) bool {
	return p.group.TryGo(func() error {
		task()
		return nil
	})
}

// Limit returns the maximum number of concurrent tasks.
func (p *TaskPool) Limit() int { return p.limit }

// Wait blocks until every started task has returned.
func (p *TaskPool) Wait() {
	_ = p.group.Wait()
}
