// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBurstFiresOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := New(40*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() != 0 {
		t.Fatalf("fired during the burst: %d calls", calls.Load())
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if d.Pending() {
		t.Error("Pending() = true after firing")
	}
}

func TestTriggerResetsWindow(t *testing.T) {
	t.Parallel()

	fired := make(chan time.Time, 1)
	d := New(60*time.Millisecond, func() { fired <- time.Now() })

	start := time.Now()
	d.Trigger()
	time.Sleep(40 * time.Millisecond)
	d.Trigger()

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < 95*time.Millisecond {
			t.Errorf("fired after %v, want at least ~100ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
}

func TestFlushRunsImmediately(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	if d.Flush() {
		t.Error("Flush with nothing pending should not run")
	}
	d.Trigger()
	if !d.Flush() {
		t.Error("Flush with a pending call should run")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if d.Pending() {
		t.Error("Flush left a pending call")
	}
}

func TestStopAndCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("cancelled call fired")
	}

	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("Trigger after Stop fired")
	}

	d.Reset()
	d.Trigger()
	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls after Reset = %d, want 1", calls.Load())
	}
}
