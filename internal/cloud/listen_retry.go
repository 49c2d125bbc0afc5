// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// bufferLocked stores req under key unless a buffered request of higher
// rank is already there.
func (t *listenTracker) bufferLocked(ctx context.Context, key string, req models.ListenRequest) {
	if existing, ok := t.buffer[key]; ok && listenRank(req) < listenRank(existing) {
		return
	}
	if req.Queued.IsZero() {
		req.Queued = t.now()
	}
	req.Params = cloneParams(req.Params)
	t.buffer[key] = req
	t.persistLocked(ctx, key, req)
	metrics.ListenBufferSize.Set(float64(len(t.buffer)))
}

// amendBufferedCreateLocked applies the end of a listen whose create never
// reached the server. A short listen is removed outright; a long one gets
// its end time.
func (t *listenTracker) amendBufferedCreateLocked(key string, long bool, endedAt time.Time) {
	req, ok := t.buffer[key]
	if !ok {
		return
	}
	if !long {
		t.removeLocked(t.m.currentLinkCtx(), key)
		return
	}
	req.Params = cloneParams(req.Params)
	if req.Params == nil {
		req.Params = make(map[string]any)
	}
	req.Params["ended_at"] = endedAt.Unix()
	req.Queued = t.now()
	t.buffer[key] = req
	t.persistLocked(t.m.currentLinkCtx(), key, req)
}

func (t *listenTracker) removeLocked(ctx context.Context, key string) {
	delete(t.buffer, key)
	if err := t.m.store.DeleteListen(context.WithoutCancel(ctx), key); err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete buffered listen")
	}
	if key == t.currentBufferKey {
		t.currentBufferKey = ""
	}
	metrics.ListenBufferSize.Set(float64(len(t.buffer)))
}

func (t *listenTracker) persistLocked(ctx context.Context, key string, req models.ListenRequest) {
	if err := t.m.store.PutListen(context.WithoutCancel(ctx), key, req); err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist buffered listen")
	}
}

// checkRetry arms the retry timer when the buffer holds entries, or resets
// the schedule when it is empty.
func (t *listenTracker) checkRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scheduleRetryLocked()
}

// scheduleRetryLocked advances the retry step and arms a one-shot timer.
// The step only moves forward until the buffer drains.
func (t *listenTracker) scheduleRetryLocked() {
	if len(t.buffer) == 0 {
		t.retryStep = -1
		if t.retryTimer != nil {
			t.retryTimer.Stop()
			t.retryTimer = nil
		}
		metrics.ListenRetryStep.Set(-1)
		return
	}
	if t.retryTimer != nil || !t.m.Running() || !t.m.Connected() {
		return
	}

	steps := t.m.cfg.Listen.RetrySteps
	if len(steps) == 0 {
		return
	}
	t.retryStep++
	delay := steps[min(t.retryStep, len(steps)-1)]
	metrics.ListenRetryStep.Set(float64(t.retryStep))

	t.logger.Debug().Int("step", t.retryStep).Dur("delay", delay).Int("buffered", len(t.buffer)).Msg("Listen retry scheduled")
	t.retryTimer = time.AfterFunc(delay, t.fireRetry)
}

func (t *listenTracker) fireRetry() {
	t.mu.Lock()
	t.retryTimer = nil
	t.mu.Unlock()
	t.m.submit(t.m.listenQ, "listen-retry", t.retry)
}

// retry resends a snapshot of the buffer with bounded concurrency. An
// entry is removed only if it was not replaced while it was in flight.
func (t *listenTracker) retry(ctx context.Context) {
	t.mu.Lock()
	snapshot := make(map[string]models.ListenRequest, len(t.buffer))
	for k, v := range t.buffer {
		snapshot[k] = v
	}
	t.mu.Unlock()

	p := pool.New().WithMaxGoroutines(max(t.m.cfg.Listen.RetryConcurrency, 1))
	for key, req := range snapshot {
		p.Go(func() {
			t.retryOne(ctx, key, req)
		})
	}
	p.Wait()

	t.checkRetry()
}

func (t *listenTracker) retryOne(ctx context.Context, key string, req models.ListenRequest) {
	res, err := t.deliver(ctx, req)

	var createdID int64
	if err == nil && listenAction(req) == "create" {
		var l models.Listen
		if derr := res.Decode(&l); derr == nil {
			createdID = l.ID
		}
	}
	metrics.RecordListenRetry(err == nil)

	t.mu.Lock()
	defer t.unlock()

	if err != nil && shouldBuffer(err) {
		return
	}
	if err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Dropping buffered listen")
	}

	current, ok := t.buffer[key]
	if !ok || !current.Queued.Equal(req.Queued) || current.Method != req.Method {
		return
	}
	wasCurrent := key == t.currentBufferKey
	t.removeLocked(ctx, key)

	if wasCurrent && createdID != 0 {
		t.currentID = createdID
	}
}

// load restores the persisted retry buffer.
func (t *listenTracker) load(ctx context.Context) error {
	buf, err := t.m.store.ListenBuffer(ctx)
	if err != nil {
		return fmt.Errorf("load listen buffer: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range buf {
		t.buffer[k] = v
	}
	metrics.ListenBufferSize.Set(float64(len(t.buffer)))
	if len(buf) > 0 {
		t.logger.Info().Int("entries", len(buf)).Msg("Restored listen retry buffer")
	}
	return nil
}

// stop cancels timers. The buffer stays persisted for the next start.
func (t *listenTracker) stop() {
	t.startDebounce.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	t.retryStep = -1
}

// reset discards every listen, in flight or buffered. Used on delink.
func (t *listenTracker) reset(ctx context.Context) {
	t.startDebounce.Cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	t.retryStep = -1
	t.clearCurrentLocked()
	t.queue = make(map[string]*inflight)
	t.buffer = make(map[string]models.ListenRequest)
	if err := t.m.store.ClearListenBuffer(context.WithoutCancel(ctx)); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to clear listen buffer")
	}
	metrics.ListenBufferSize.Set(0)
	metrics.ListenRetryStep.Set(-1)
}

func (t *listenTracker) bufferLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// RetryStep returns the current retry step, or -1 when nothing is scheduled.
func (t *listenTracker) RetryStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryStep
}

// BufferedListens returns a copy of the listen retry buffer.
func (m *Manager) BufferedListens() map[string]models.ListenRequest {
	t := m.listens
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]models.ListenRequest, len(t.buffer))
	for k, v := range t.buffer {
		v.Params = cloneParams(v.Params)
		out[k] = v
	}
	return out
}
