// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/cloud"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

func init() {
	logging.SetLogger(zerolog.New(io.Discard))
}

// call records one engine method invocation.
type call struct {
	method string
	args   []any
}

// fakeEngine records calls and returns the configured error for a method.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []call
	errs     map[string]error
	identity *models.Identity
	listens  bool
	stats    cloud.Stats
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{errs: make(map[string]error), listens: true}
}

func (f *fakeEngine) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})
	return f.errs[method]
}

func (f *fakeEngine) failWith(method string, err error) {
	f.mu.Lock()
	f.errs[method] = err
	f.mu.Unlock()
}

func (f *fakeEngine) called(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEngine) Stats() cloud.Stats { return f.stats }

func (f *fakeEngine) Identity() *models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeEngine) Link(_ context.Context, creds models.Credentials) error {
	return f.record("Link", creds)
}

func (f *fakeEngine) Delink(context.Context) error { return f.record("Delink") }

func (f *fakeEngine) SetSyncFlags(_ context.Context, flags cloud.SyncFlags) error {
	return f.record("SetSyncFlags", flags)
}

func (f *fakeEngine) SetListenSubmission(enabled bool) {
	_ = f.record("SetListenSubmission", enabled)
	f.mu.Lock()
	f.listens = enabled
	f.mu.Unlock()
}

func (f *fakeEngine) ListenSubmission() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens
}

func (f *fakeEngine) FlushNow(context.Context) { _ = f.record("FlushNow") }

func (f *fakeEngine) PlaybackChanged(state models.MediaState, track models.Track) {
	_ = f.record("PlaybackChanged", state, track)
}

func (f *fakeEngine) ConfigChanged(field string, value any) error {
	return f.record("ConfigChanged", field, value)
}

func (f *fakeEngine) SyncPlaylists(context.Context) error { return f.record("SyncPlaylists") }

func (f *fakeEngine) PlaylistCreated(name string) error { return f.record("PlaylistCreated", name) }

func (f *fakeEngine) PlaylistRenamed(oldName, newName string) error {
	return f.record("PlaylistRenamed", oldName, newName)
}

func (f *fakeEngine) PlaylistTracksAdded(name string, paths []string) error {
	return f.record("PlaylistTracksAdded", name, paths)
}

func (f *fakeEngine) PlaylistTracksRemoved(name string, paths []string) error {
	return f.record("PlaylistTracksRemoved", name, paths)
}

func (f *fakeEngine) PlaylistDeleted(p models.Playlist) error {
	return f.record("PlaylistDeleted", p)
}

func (f *fakeEngine) SetLinkConsent(_ context.Context, provider string, consent models.LinkConsent) error {
	return f.record("SetLinkConsent", provider, consent)
}

func (f *fakeEngine) Share(_ context.Context, objectType string, id int64, message string) error {
	return f.record("Share", objectType, id, message)
}

// fakeBridge records handled events.
type fakeBridge struct {
	mu     sync.Mutex
	events []models.ObjectEvent
	err    error
}

func (b *fakeBridge) Handle(ev models.ObjectEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *fakeBridge) snapshot() []models.ObjectEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ObjectEvent(nil), b.events...)
}

type testEnv struct {
	engine  *fakeEngine
	bridge  *fakeBridge
	library *library.Library
	player  *library.Player
	handler http.Handler
}

func newTestEnv(t *testing.T, mw *MiddlewareConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		engine:  newFakeEngine(),
		bridge:  &fakeBridge{},
		library: library.New(nil),
		player:  library.NewPlayer(nil, nil),
	}
	router, err := NewRouter(Deps{
		Engine:  env.engine,
		Bridge:  env.bridge,
		Library: env.library,
		Player:  env.player,
	}, mw)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	env.handler = router.Handler()
	return env
}

// do sends body (marshalled unless it is a string) and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decodeResponse unmarshals the envelope, with Data decoded into data when non-nil.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) models.APIResponse {
	t.Helper()
	var raw struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return models.APIResponse{Status: raw.Status, Error: raw.Error}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	resp := decodeResponse(t, rec, nil)
	if resp.Error == nil || resp.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", resp.Error, code)
	}
}
