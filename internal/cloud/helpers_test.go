// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/store"
	"github.com/tomtom215/cadence/internal/transport"
)

// recorded is one request seen by the fake service.
type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// reply builds a canned response. A nil body writes nothing.
type reply func(r recorded) (int, any)

// fakeService is an in-process stand-in for the cloud API.
type fakeService struct {
	srv    *httptest.Server
	mu     sync.Mutex
	reqs   []recorded
	routes map[string]reply
	nextID atomic.Int64
}

const (
	testUserID   = 7
	testDeviceID = 100
	testConfigID = 50
)

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{routes: make(map[string]reply)}
	f.nextID.Store(1000)

	f.on("GET /me.json", static(http.StatusOK, map[string]any{"id": testUserID, "name": "tester"}))
	f.on("POST /devices.json", static(http.StatusCreated, map[string]any{"id": testDeviceID}))
	f.on(fmt.Sprintf("GET /devices/%d.json", testDeviceID), static(http.StatusOK, map[string]any{"id": testDeviceID, "configuration_id": testConfigID}))
	f.on(fmt.Sprintf("PUT /devices/%d.json", testDeviceID), static(http.StatusOK, map[string]any{}))
	f.on("GET /links.json", static(http.StatusOK, []any{}))
	f.on("GET /configurations.json", static(http.StatusOK, []any{
		map[string]any{"id": testConfigID, "name": "Default", "shuffle": true, "repeat": "RepeatAll", "volume": 0.4},
	}))
	f.on("GET /playlists.json", static(http.StatusOK, []any{}))
	f.on("POST /playlists.json", func(recorded) (int, any) {
		return http.StatusCreated, map[string]any{"id": f.nextID.Add(1)}
	})
	f.on("POST /listens.json", func(recorded) (int, any) {
		return http.StatusCreated, map[string]any{"id": f.nextID.Add(1), "started_at": time.Now().UTC()}
	})

	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func static(status int, body any) reply {
	return func(recorded) (int, any) { return status, body }
}

// on installs a reply for "METHOD /path".
func (f *fakeService) on(route string, r reply) {
	f.mu.Lock()
	f.routes[route] = r
	f.mu.Unlock()
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.reqs = append(f.reqs, rec)
	handler, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	status, body := http.StatusNotFound, any(nil)
	switch {
	case ok:
		status, body = handler(rec)
	case r.Method == http.MethodPut:
		status = http.StatusOK
		body = map[string]any{}
	case r.Method == http.MethodDelete:
		status = http.StatusNoContent
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/end.json"):
		status = http.StatusOK
		body = map[string]any{}
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/follow.json"):
		status = http.StatusCreated
		body = map[string]any{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// requests returns the recorded requests matching method and path. An
// empty method or path matches anything.
func (f *fakeService) requests(method, path string) []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recorded
	for _, r := range f.reqs {
		if (method == "" || r.Method == method) && (path == "" || r.Path == path) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeService) count(method, path string) int {
	return len(f.requests(method, path))
}

// testEnv bundles an engine with its real collaborators.
type testEnv struct {
	svc     *fakeService
	cfg     *config.Config
	client  *transport.Client
	store   *store.Store
	library *library.Library
	player  *library.Player
	notes   *noteRecorder
	m       *Manager
}

type noteRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (n *noteRecorder) Notify(kind string, _ any) {
	n.mu.Lock()
	n.kinds = append(n.kinds, kind)
	n.mu.Unlock()
}

func (n *noteRecorder) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

func testConfig(domain string) *config.Config {
	cfg := config.Default()
	cfg.Service.Domain = domain
	cfg.Service.Timeout = 2 * time.Second
	cfg.Service.PingAttempts = 1
	cfg.Service.ReconnectInterval = 50 * time.Millisecond
	cfg.Sync.FlushDelay = 20 * time.Millisecond
	cfg.Sync.InboundDelay = 20 * time.Millisecond
	cfg.Listen.StartDelay = 30 * time.Millisecond
	cfg.Listen.MinimumListenTime = 150 * time.Millisecond
	cfg.Listen.RetrySteps = []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
	cfg.Device.Name = "test-device"
	cfg.Device.WaitTimeout = 2 * time.Second
	cfg.Device.WaitStep = 10 * time.Millisecond
	cfg.Store.InMemory = true
	return cfg
}

// newTestEnv builds an engine against a fresh fake service. tweak may
// adjust the configuration before the engine is built.
func newTestEnv(t *testing.T, tweak func(cfg *config.Config)) *testEnv {
	t.Helper()
	svc := newFakeService(t)
	cfg := testConfig(svc.srv.URL)
	if tweak != nil {
		tweak(cfg)
	}

	client, err := transport.New(transport.Config{
		Domain:         cfg.Service.Domain,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Timeout:        cfg.Service.Timeout,
		HTTPClient:     svc.srv.Client(),
	})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	lib := library.New(nil)
	player := library.NewPlayer(nil, nil)
	notes := &noteRecorder{}

	m, err := NewManager(cfg, Deps{Client: client, Store: st, Library: lib, Player: player, Notifier: notes})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &testEnv{svc: svc, cfg: cfg, client: client, store: st, library: lib, player: player, notes: notes, m: m}
}

// start runs the engine until the test ends.
func (e *testEnv) start(t *testing.T) {
	t.Helper()
	if err := e.m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.m.Stop() })
}

// link starts the engine, links an account and waits for the device,
// configuration and first playlist sync.
func (e *testEnv) link(t *testing.T) {
	t.Helper()
	e.start(t)
	if err := e.m.Link(context.Background(), models.Credentials{Token: "tok", Secret: "sec"}); err != nil {
		t.Fatalf("Link: %v", err)
	}
	waitFor(t, "device registration and configuration", func() bool {
		id := e.m.Identity()
		return id != nil && id.DeviceID == testDeviceID && id.ConfigurationID == testConfigID
	})
	waitFor(t, "initial playlist and link sync", func() bool {
		return e.notes.count(models.NotifyPlaylistsChanged) > 0 && e.notes.count(models.NotifyLinksChanged) > 0
	})
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
