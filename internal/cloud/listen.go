// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/debounce"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/transport"
)

// inflight is a listen create that has been sent but not acknowledged.
// An end or delete that arrives meanwhile is parked here and issued once
// the server id is known.
type inflight struct {
	pendingDelete bool
	pendingEnd    bool
	endedAt       time.Time
}

// listenTracker turns playback events into listen records on the service.
//
// A listen is created only after playback has lasted listen.start_delay.
// When playback stops, the listen is ended if it lasted at least
// listen.minimum_listen_time and deleted otherwise. Requests that cannot be
// delivered wait in a persistent buffer and are retried on a schedule.
type listenTracker struct {
	m      *Manager
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	enabled bool
	state   models.MediaState
	current models.Track
	stamp   time.Time
	started bool

	// currentKey is the create key of the current listen. currentID is its
	// server id once acknowledged; currentBufferKey is set while its create
	// sits in the retry buffer.
	currentKey       string
	currentID        int64
	currentBufferKey string

	queue  map[string]*inflight
	buffer map[string]models.ListenRequest

	retryStep  int
	retryTimer *time.Timer

	startDebounce *debounce.Debouncer

	// outbox holds submissions made under mu; unlock hands them to the
	// queue after releasing it.
	outbox []func()
}

// unlock releases mu and then submits whatever was queued while it was held.
func (t *listenTracker) unlock() {
	out := t.outbox
	t.outbox = nil
	t.mu.Unlock()
	for _, fn := range out {
		fn()
	}
}

// submitLocked defers a listens-queue submission until unlock.
func (t *listenTracker) submitLocked(name string, fn func(ctx context.Context)) {
	t.outbox = append(t.outbox, func() { t.m.submit(t.m.listenQ, name, fn) })
}

func newListenTracker(m *Manager) *listenTracker {
	t := &listenTracker{
		m:         m,
		logger:    logging.Component("listens"),
		now:       func() time.Time { return m.now() },
		enabled:   m.cfg.Listen.Enabled,
		state:     models.MediaStopped,
		queue:     make(map[string]*inflight),
		buffer:    make(map[string]models.ListenRequest),
		retryStep: -1,
	}
	t.startDebounce = debounce.New(m.cfg.Listen.StartDelay, t.fireStart)
	return t
}

// PlaybackChanged reports the player state together with the track it
// applies to. It is the single entry point for listen tracking.
func (m *Manager) PlaybackChanged(state models.MediaState, track models.Track) {
	m.listens.playbackChanged(state, track)
}

// MediaStateChanged reports a state change for the current track.
func (m *Manager) MediaStateChanged(state models.MediaState) {
	t := m.listens
	t.mu.Lock()
	track := t.current
	t.mu.Unlock()
	t.playbackChanged(state, track)
}

// TrackSwitched reports that the player moved to another track.
func (m *Manager) TrackSwitched(track models.Track) {
	t := m.listens
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state != models.MediaPlaying {
		t.mu.Lock()
		t.finishLocked(true)
		t.current = track
		t.unlock()
		return
	}
	t.playbackChanged(models.MediaPlaying, track)
}

// SetListenSubmission turns listen tracking on or off at runtime. Turning
// it off abandons the current listen but keeps the retry buffer.
func (m *Manager) SetListenSubmission(enabled bool) {
	t := m.listens
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	if !enabled {
		t.startDebounce.Cancel()
		t.clearCurrentLocked()
	}
	t.logger.Info().Bool("enabled", enabled).Msg("Listen submission toggled")
}

// ListenSubmission reports whether listen tracking is on.
func (m *Manager) ListenSubmission() bool {
	t := m.listens
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *listenTracker) playbackChanged(state models.MediaState, track models.Track) {
	t.mu.Lock()
	defer t.unlock()

	t.state = state
	if !t.enabled {
		return
	}

	switch state {
	case models.MediaPlaying:
		if track.Path == "" {
			return
		}
		if track.Path != t.current.Path {
			t.finishLocked(true)
			t.current = track
			t.stamp = t.now()
			t.startDebounce.Trigger()
			return
		}
		t.resumeLocked()

	case models.MediaPaused:
		t.startDebounce.Cancel()
		t.finishLocked(false)

	case models.MediaStopped:
		t.startDebounce.Cancel()
		t.finishLocked(true)
	}
}

// resumeLocked continues the current track after a pause.
func (t *listenTracker) resumeLocked() {
	if !t.started {
		if t.stamp.IsZero() {
			t.stamp = t.now()
		}
		t.startDebounce.Trigger()
		return
	}
	if f, ok := t.queue[t.currentKey]; ok {
		f.pendingEnd = false
		return
	}
	if t.currentID == 0 {
		return
	}
	params := map[string]any{"ended_at": t.expectedEnd().Unix()}
	t.dispatchLocked(fmt.Sprintf("listen:%d", t.currentID), models.ListenRequest{
		Method:    http.MethodPut,
		Path:      resourcePath("listens", t.currentID),
		Params:    params,
		TrackPath: t.current.Path,
	})
}

// expectedEnd estimates when the current track will finish.
func (t *listenTracker) expectedEnd() time.Time {
	now := t.now()
	if t.current.Length <= 0 {
		return now
	}
	end := t.stamp.Add(time.Duration(t.current.Length * float64(time.Second)))
	if end.Before(now) {
		return now
	}
	return end
}

// finishLocked ends or deletes the current listen depending on how long it
// lasted. With clear it also forgets the track.
func (t *listenTracker) finishLocked(clear bool) {
	if !t.started {
		t.startDebounce.Cancel()
		t.clearCurrentLocked()
		return
	}

	now := t.now()
	long := now.Sub(t.stamp) >= t.m.cfg.Listen.MinimumListenTime

	switch {
	case t.currentID != 0:
		if long {
			t.dispatchLocked(fmt.Sprintf("listen:%d", t.currentID), models.ListenRequest{
				Method:    http.MethodPost,
				Path:      fmt.Sprintf("/listens/%d/end.json", t.currentID),
				Params:    map[string]any{"ended_at": now.Unix()},
				TrackPath: t.current.Path,
			})
		} else {
			t.dispatchLocked(fmt.Sprintf("listen:%d", t.currentID), models.ListenRequest{
				Method:    http.MethodDelete,
				Path:      resourcePath("listens", t.currentID),
				TrackPath: t.current.Path,
			})
		}

	case t.queue[t.currentKey] != nil:
		f := t.queue[t.currentKey]
		if long {
			f.pendingEnd = true
			f.endedAt = now
		} else {
			f.pendingDelete = true
		}

	case t.currentBufferKey != "":
		t.amendBufferedCreateLocked(t.currentBufferKey, long, now)
	}

	// a long paused listen stays current so resuming updates it
	if !long || clear {
		t.clearCurrentLocked()
	}
}

func (t *listenTracker) clearCurrentLocked() {
	t.started = false
	t.stamp = time.Time{}
	t.currentKey = ""
	t.currentID = 0
	t.currentBufferKey = ""
}

// fireStart runs when playback has lasted the start delay.
func (t *listenTracker) fireStart() {
	t.mu.Lock()
	defer t.unlock()

	if !t.enabled || t.started || t.state != models.MediaPlaying || t.current.Path == "" {
		return
	}
	if !t.m.Linked() {
		return
	}

	t.started = true
	key := fmt.Sprintf("listen:new:%s:%d", t.current.Path, t.stamp.Unix())
	t.currentKey = key

	song := t.m.library.Track(t.current.Path)
	if song.Path == "" {
		song = t.current
	}
	params := map[string]any{
		"started_at": t.stamp.Unix(),
		"song":       song.SongParams(),
	}
	if t.current.Length > 0 {
		params["ended_at"] = t.expectedEnd().Unix()
	}
	req := models.ListenRequest{
		Method:    http.MethodPost,
		Path:      "/listens.json",
		Params:    params,
		TrackPath: t.current.Path,
		Queued:    t.now(),
	}

	t.queue[key] = &inflight{}
	t.submitLocked("listen-create", func(ctx context.Context) {
		t.sendCreate(ctx, key, req)
	})
}

// sendCreate posts a new listen and resolves whatever happened to it while
// the request was in flight.
func (t *listenTracker) sendCreate(ctx context.Context, key string, req models.ListenRequest) {
	res, err := t.deliver(ctx, req)

	var id int64
	if err == nil {
		var l models.Listen
		if derr := res.Decode(&l); derr != nil || l.ID == 0 {
			if derr == nil {
				derr = &transport.Error{Kind: transport.Malformed, Op: "POST /listens.json", Status: res.Status, Err: errors.New("missing listen id")}
			}
			err = derr
		}
		id = l.ID
	}

	t.mu.Lock()
	defer t.unlock()

	f := t.queue[key]
	delete(t.queue, key)
	if f == nil {
		f = &inflight{}
	}

	if err != nil {
		metrics.RecordListen("create", shouldBuffer(err))
		if !shouldBuffer(err) || f.pendingDelete {
			t.logger.Warn().Err(err).Str("track", req.TrackPath).Msg("Listen create dropped")
			return
		}
		if f.pendingEnd {
			req.Params["ended_at"] = f.endedAt.Unix()
		}
		t.bufferLocked(ctx, key, req)
		if key == t.currentKey {
			t.currentBufferKey = key
		}
		t.scheduleRetryLocked()
		return
	}

	metrics.RecordListen("create", false)
	t.logger.Debug().Int64("listen_id", id).Str("track", req.TrackPath).Msg("Listen created")

	switch {
	case f.pendingDelete:
		t.dispatchLocked(fmt.Sprintf("listen:%d", id), models.ListenRequest{
			Method:    http.MethodDelete,
			Path:      resourcePath("listens", id),
			TrackPath: req.TrackPath,
		})
	case f.pendingEnd:
		t.dispatchLocked(fmt.Sprintf("listen:%d", id), models.ListenRequest{
			Method:    http.MethodPost,
			Path:      fmt.Sprintf("/listens/%d/end.json", id),
			Params:    map[string]any{"ended_at": f.endedAt.Unix()},
			TrackPath: req.TrackPath,
		})
	}
	if key == t.currentKey && !f.pendingDelete {
		t.currentID = id
	}
}

// dispatchLocked sends an update, end or delete for a known listen. If a
// request for the same listen is already buffered, the buffer entry is
// upgraded instead so the two cannot race.
func (t *listenTracker) dispatchLocked(key string, req models.ListenRequest) {
	req.Queued = t.now()
	if _, ok := t.buffer[key]; ok {
		t.bufferLocked(t.m.currentLinkCtx(), key, req)
		return
	}
	t.submitLocked("listen-"+listenAction(req), func(ctx context.Context) {
		_, err := t.deliver(ctx, req)
		metrics.RecordListen(listenAction(req), err != nil && shouldBuffer(err))
		if err == nil {
			return
		}
		if !shouldBuffer(err) {
			t.logger.Warn().Err(err).Str("path", req.Path).Msg("Listen request dropped")
			return
		}
		t.mu.Lock()
		t.bufferLocked(ctx, key, req)
		t.scheduleRetryLocked()
		t.unlock()
	})
}

// deliver sends one listen request.
func (t *listenTracker) deliver(ctx context.Context, req models.ListenRequest) (*transport.Result, error) {
	query, body := encodeParams("listen", req.Params)
	r := transport.Request{Method: req.Method, Path: req.Path, Query: query, Body: body}
	switch listenAction(req) {
	case "create":
		r.Expect = []int{http.StatusCreated}
	case "delete":
		r.Expect = []int{http.StatusNoContent, http.StatusOK}
	default:
		r.Expect = []int{http.StatusOK, http.StatusNoContent}
	}
	return t.m.send(ctx, r)
}

// shouldBuffer reports whether a failed listen request is worth retrying.
func shouldBuffer(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	k, ok := transport.KindOf(err)
	if !ok {
		return true
	}
	switch k {
	case transport.Canceled, transport.NotFound, transport.Malformed:
		return false
	}
	return true
}

func listenAction(req models.ListenRequest) string {
	switch {
	case req.Method == http.MethodDelete:
		return "delete"
	case req.Method == http.MethodPut:
		return "update"
	case strings.HasSuffix(req.Path, "/end.json"):
		return "end"
	default:
		return "create"
	}
}

// listenRank orders requests for the same listen. A buffered request is
// only replaced by one of equal or higher rank.
func listenRank(req models.ListenRequest) int {
	switch listenAction(req) {
	case "update":
		return 1
	case "end":
		return 2
	case "delete":
		return 3
	}
	return 0
}
