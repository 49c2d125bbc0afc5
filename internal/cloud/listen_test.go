// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

var testTrack = models.Track{Path: "/music/one.flac", Title: "One", Artist: "Band", Length: 240}

func (f *fakeService) listenCalls(suffix string) int {
	n := 0
	for _, r := range f.requests("", "") {
		if strings.HasPrefix(r.Path, "/listens/") && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

func (f *fakeService) listenDeletes() int {
	n := 0
	for _, r := range f.requests(http.MethodDelete, "") {
		if strings.HasPrefix(r.Path, "/listens/") {
			n++
		}
	}
	return n
}

func TestListenLongPlayIsEnded(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	waitFor(t, "listen create", func() bool { return e.svc.count(http.MethodPost, "/listens.json") == 1 })

	create := e.svc.requests(http.MethodPost, "/listens.json")[0]
	if create.Query.Get("listen[started_at]") == "" {
		t.Error("create missing started_at")
	}
	song, _ := create.Body["listen"].(map[string]any)["song"].(map[string]any)
	if song["path"] != testTrack.Path {
		t.Errorf("song = %v", song)
	}

	time.Sleep(e.cfg.Listen.MinimumListenTime + 50*time.Millisecond)
	e.m.PlaybackChanged(models.MediaStopped, testTrack)

	waitFor(t, "listen end", func() bool { return e.svc.listenCalls("/end.json") == 1 })
	if n := e.svc.listenDeletes(); n != 0 {
		t.Errorf("long listen was deleted %d times", n)
	}
}

func TestListenShortPlayIsDeleted(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.MinimumListenTime = time.Hour })
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	waitFor(t, "listen create", func() bool { return e.svc.count(http.MethodPost, "/listens.json") == 1 })
	waitFor(t, "listen id", func() bool {
		e.m.listens.mu.Lock()
		defer e.m.listens.mu.Unlock()
		return e.m.listens.currentID != 0
	})
	e.m.PlaybackChanged(models.MediaStopped, testTrack)

	waitFor(t, "listen delete", func() bool { return e.svc.listenDeletes() == 1 })
	if n := e.svc.listenCalls("/end.json"); n != 0 {
		t.Errorf("short listen was ended %d times", n)
	}
}

func TestListenStoppedBeforeStartDelaySendsNothing(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.StartDelay = 200 * time.Millisecond })
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	e.m.PlaybackChanged(models.MediaStopped, testTrack)
	time.Sleep(300 * time.Millisecond)

	if n := e.svc.count(http.MethodPost, "/listens.json"); n != 0 {
		t.Errorf("created %d listens for playback shorter than the start delay", n)
	}
}

func TestListenDeleteWhileCreateInFlight(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.MinimumListenTime = time.Hour })
	release := make(chan struct{})
	var id atomic.Int64
	e.svc.on("POST /listens.json", func(recorded) (int, any) {
		<-release
		return http.StatusCreated, map[string]any{"id": id.Add(1) + 500}
	})
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	waitFor(t, "listen create sent", func() bool { return e.svc.count(http.MethodPost, "/listens.json") == 1 })
	e.m.PlaybackChanged(models.MediaStopped, testTrack)
	close(release)

	waitFor(t, "parked delete", func() bool { return e.svc.count(http.MethodDelete, "/listens/501.json") == 1 })
}

func TestListenTrackSwitchEndsPrevious(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.MinimumListenTime = 10 * time.Millisecond })
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	waitFor(t, "first create", func() bool { return e.svc.count(http.MethodPost, "/listens.json") == 1 })
	waitFor(t, "first id", func() bool {
		e.m.listens.mu.Lock()
		defer e.m.listens.mu.Unlock()
		return e.m.listens.currentID != 0
	})

	e.m.TrackSwitched(models.Track{Path: "/music/two.flac"})
	waitFor(t, "previous ended", func() bool { return e.svc.listenCalls("/end.json") == 1 })
	waitFor(t, "second create", func() bool { return e.svc.count(http.MethodPost, "/listens.json") == 2 })
}

func TestListenRetryBacksOffMonotonically(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	var healthy atomic.Bool
	e.svc.on("POST /listens.json", func(recorded) (int, any) {
		if !healthy.Load() {
			return http.StatusServiceUnavailable, map[string]any{"error": "maintenance"}
		}
		return http.StatusCreated, map[string]any{"id": 777}
	})
	e.link(t)

	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	waitFor(t, "listen buffered", func() bool { return e.m.Stats().ListenBuffer == 1 })

	last := -1
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		step := e.m.listens.RetryStep()
		if step < last {
			t.Fatalf("retry step went from %d back to %d", last, step)
		}
		last = step
		if step >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if last < 2 {
		t.Fatalf("retry step only reached %d", last)
	}
	if !e.m.Connected() {
		t.Fatal("server errors cleared connectivity")
	}

	healthy.Store(true)
	waitFor(t, "buffer drained", func() bool { return e.m.Stats().ListenBuffer == 0 })
	waitFor(t, "retry step reset", func() bool { return e.m.listens.RetryStep() == -1 })

	if left, err := e.store.ListenBuffer(context.Background()); err != nil || len(left) != 0 {
		t.Errorf("persisted buffer = %v, %v", left, err)
	}
}

func TestListenBufferDeleteTakesPrecedence(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.RetrySteps = []time.Duration{time.Hour} })
	var healthy atomic.Bool
	e.svc.on("POST /listens/5/end.json", func(recorded) (int, any) {
		if !healthy.Load() {
			return http.StatusBadGateway, nil
		}
		return http.StatusOK, map[string]any{}
	})
	e.link(t)

	tr := e.m.listens
	dispatch := func(req models.ListenRequest) {
		tr.mu.Lock()
		tr.dispatchLocked("listen:5", req)
		tr.unlock()
	}

	dispatch(models.ListenRequest{Method: http.MethodPost, Path: "/listens/5/end.json"})
	waitFor(t, "end buffered", func() bool { return e.m.Stats().ListenBuffer == 1 })

	dispatch(models.ListenRequest{Method: http.MethodDelete, Path: "/listens/5.json"})
	dispatch(models.ListenRequest{Method: http.MethodPut, Path: "/listens/5.json"})

	if got := e.m.BufferedListens()["listen:5"].Method; got != http.MethodDelete {
		t.Fatalf("buffered method = %s, want DELETE", got)
	}
	if n := e.svc.count(http.MethodPut, "/listens/5.json"); n != 0 {
		t.Errorf("update bypassed the buffered delete: %d", n)
	}

	healthy.Store(true)
	tr.retry(context.Background())

	if n := e.svc.count(http.MethodDelete, "/listens/5.json"); n != 1 {
		t.Errorf("DELETE sent %d times, want 1", n)
	}
	if n := e.svc.listenCalls("/end.json"); n != 1 {
		t.Errorf("end sent %d times, want only the original attempt", n)
	}
	if got := e.m.Stats().ListenBuffer; got != 0 {
		t.Errorf("buffer = %d after retry", got)
	}
}

func TestListenBufferRestoredOnStart(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Listen.RetrySteps = []time.Duration{time.Hour} })
	req := models.ListenRequest{Method: http.MethodDelete, Path: "/listens/9.json", Queued: time.Now()}
	if err := e.store.PutListen(context.Background(), "listen:9", req); err != nil {
		t.Fatalf("PutListen: %v", err)
	}
	e.start(t)

	if got := e.m.Stats().ListenBuffer; got != 1 {
		t.Fatalf("restored %d entries, want 1", got)
	}
}

func TestListenSubmissionToggle(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.link(t)

	e.m.SetListenSubmission(false)
	if e.m.ListenSubmission() {
		t.Fatal("toggle did not apply")
	}
	e.m.PlaybackChanged(models.MediaPlaying, testTrack)
	time.Sleep(3 * e.cfg.Listen.StartDelay)
	if n := e.svc.count(http.MethodPost, "/listens.json"); n != 0 {
		t.Errorf("created %d listens while disabled", n)
	}
}
