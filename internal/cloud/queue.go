// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

type task struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context)
}

// taskQueue is a bounded FIFO drained by a fixed number of workers.
// Submitting to a full queue blocks until there is room or ctx ends.
type taskQueue struct {
	name    string
	tasks   chan task
	workers int
	wg      sync.WaitGroup
	logger  zerolog.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

func newTaskQueue(name string, size, workers int) *taskQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &taskQueue{
		name:    name,
		tasks:   make(chan task, size),
		workers: workers,
		done:    make(chan struct{}),
		logger:  logging.Component("queue-" + name),
	}
}

// start launches the workers. A closed queue can be started again.
func (q *taskQueue) start() {
	q.mu.Lock()
	if q.closed {
		q.done = make(chan struct{})
		q.closed = false
	}
	done := q.done
	q.mu.Unlock()

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.work(done)
	}
}

func (q *taskQueue) doneCh() chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

// submit enqueues fn to run under ctx.
func (q *taskQueue) submit(ctx context.Context, name string, fn func(ctx context.Context)) error {
	done := q.doneCh()
	select {
	case <-done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task{name: name, ctx: ctx, fn: fn}:
		metrics.QueueDepth.WithLabelValues(q.name).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrQueueClosed
	}
}

func (q *taskQueue) depth() int { return len(q.tasks) }

// close stops the workers and waits for the running tasks. Queued tasks
// that have not started are discarded.
func (q *taskQueue) close() {
	q.mu.Lock()
	if !q.closed {
		close(q.done)
		q.closed = true
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *taskQueue) work(done <-chan struct{}) {
	defer q.wg.Done()
	for {
		select {
		case <-done:
			return
		case t := <-q.tasks:
			metrics.QueueDepth.WithLabelValues(q.name).Dec()
			q.run(t)
		}
	}
}

func (q *taskQueue) run(t task) {
	if t.ctx.Err() != nil {
		q.logger.Debug().Str("task", t.name).Msg("skipping task for a closed scope")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.TaskPanics.WithLabelValues(q.name).Inc()
			q.logger.Error().Str("task", t.name).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("task panicked")
		}
	}()
	t.fn(t.ctx)
}
