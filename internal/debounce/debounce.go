// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package debounce provides the coalescing scheduler shared by every
// debounced path in the engine: the sync buffer flush, the listen start
// delay and the inbound bridge buffer.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has elapsed with no further Trigger.
//
// fn runs on its own goroutine. A burst of Triggers produces exactly one call.
// Calls never overlap: a Trigger that fires while fn is still running waits
// for that call to return before fn runs again.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool

	run sync.Mutex
}

// New returns a Debouncer that calls fn after delay.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the delay. It is a no-op after Stop.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops a scheduled call without stopping the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Flush cancels any scheduled call and runs fn now if one was pending.
// It returns whether fn ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := d.timer != nil && !d.stopped
	d.cancelLocked()
	d.mu.Unlock()

	if !pending {
		return false
	}
	d.call()
	return true
}

// Stop cancels any scheduled call and disables further Triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

// Reset re-enables a stopped debouncer.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = false
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs fn unless the timer was superseded after it started.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.call()
}

func (d *Debouncer) call() {
	d.run.Lock()
	defer d.run.Unlock()
	d.fn()
}
