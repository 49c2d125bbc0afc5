// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/websocket"
)

func TestBridgeEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		body   string
		status int
		want   models.ObjectEvent
	}{
		{
			path:   "update",
			body:   `{"type":"playlists","id":4,"data":{"name":"x"}}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventUpdate, Type: "playlists", ID: 4},
		},
		{
			path:   "create",
			body:   `{"type":"links","data":{"id":9}}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventCreate, Type: "links"},
		},
		{
			path:   "delete",
			body:   `{"type":"devices","id":3}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventDelete, Type: "devices", ID: 3},
		},
		{
			path:   "execute",
			body:   `{"command":"next","type":"configurations","id":1}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventExecute, Command: "next", Type: "configurations", ID: 1},
		},
		{
			path:   "session",
			body:   `{"message":"abc"}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventSession, Message: "abc"},
		},
		{
			path:   "link-error",
			body:   `{"id":5,"message":"token expired"}`,
			status: http.StatusAccepted,
			want:   models.ObjectEvent{Event: models.EventLinkError, ID: 5, Message: "token expired"},
		},
		{path: "update", body: `{"type":"playlists","id":4}`, status: http.StatusBadRequest},
		{path: "delete", body: `{"id":3}`, status: http.StatusBadRequest},
		{path: "explode", body: `{}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.body, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)

			rec := env.do(t, http.MethodPost, "/bridge/"+tt.path, tt.body)
			expectStatus(t, rec, tt.status)

			events := env.bridge.snapshot()
			if tt.status != http.StatusAccepted {
				if len(events) != 0 {
					t.Errorf("rejected callback reached the bridge: %+v", events)
				}
				return
			}
			if len(events) != 1 {
				t.Fatalf("bridge events = %+v", events)
			}
			got := events[0]
			if got.Event != tt.want.Event || got.Type != tt.want.Type || got.ID != tt.want.ID ||
				got.Command != tt.want.Command || got.Message != tt.want.Message {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBridgeRejection(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.bridge.err = errors.New("malformed data")

	expectErrorCode(t, env.do(t, http.MethodPost, "/bridge/update", `{"type":"playlists","id":4,"data":[1]}`),
		http.StatusBadRequest, "INVALID_EVENT")
}

func TestBridgeCORSPreflight(t *testing.T) {
	t.Parallel()
	mw := DefaultMiddlewareConfig()
	mw.CORSAllowedOrigins = []string{"https://stoffi.io"}
	env := newTestEnv(t, mw)

	req := httptest.NewRequest(http.MethodOptions, "/bridge/update", nil)
	req.Header.Set("Origin", "https://stoffi.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://stoffi.io" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/bridge/update", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	mw := DefaultMiddlewareConfig()
	mw.RateLimitRequests = 2
	mw.RateLimitWindow = time.Minute
	env := newTestEnv(t, mw)

	for i := 0; i < 2; i++ {
		expectStatus(t, env.do(t, http.MethodGet, "/api/v1/status", nil), http.StatusOK)
	}
	expectErrorCode(t, env.do(t, http.MethodGet, "/api/v1/status", nil), http.StatusTooManyRequests, "RATE_LIMITED")

	// The bridge is outside the limited group.
	expectStatus(t, env.do(t, http.MethodPost, "/bridge/session", `{"message":"s"}`), http.StatusAccepted)
}

func TestMiddlewareConfigFrom(t *testing.T) {
	t.Parallel()

	mc := MiddlewareConfigFrom(config.APIConfig{
		CORSOrigins:       []string{"http://localhost"},
		RateLimitRequests: 50,
		RateLimitWindow:   time.Second,
	})
	if len(mc.CORSAllowedOrigins) != 1 || mc.RateLimitRequests != 50 || mc.RateLimitWindow != time.Second {
		t.Errorf("config = %+v", mc)
	}
	if mc.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d", mc.CORSMaxAge)
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPut, "/api/v1/settings/{field}", "200")
	before := testutil.ToFloat64(counter)

	expectStatus(t, env.do(t, http.MethodPut, "/api/v1/settings/shuffle", `{"value": true}`), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPut, "/api/v1/settings/volume", `{"value": 0.5}`), http.StatusOK)

	if got := testutil.ToFloat64(counter) - before; got < 2 {
		t.Errorf("requests recorded under the route pattern = %v, want 2", got)
	}

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "cadence_api_requests_total") {
		t.Error("/metrics does not expose the API counter")
	}
}

func TestWebSocketNotifications(t *testing.T) {
	t.Parallel()

	hub := websocket.NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Serve(ctx) }()

	router, err := NewRouter(Deps{
		Engine:  newFakeEngine(),
		Bridge:  &fakeBridge{},
		Library: library.New(nil),
		Player:  library.NewPlayer(nil, nil),
		Hub:     hub,
	}, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Notify(models.NotifyPlaylistsChanged, nil)

	var msg websocket.Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != models.NotifyPlaylistsChanged {
		t.Errorf("type = %q", msg.Type)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	hub := websocket.NewHub(4)
	router, _ := NewRouter(Deps{
		Engine:  newFakeEngine(),
		Bridge:  &fakeBridge{},
		Library: library.New(nil),
		Player:  library.NewPlayer(nil, nil),
		Hub:     hub,
	}, nil)
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("foreign origin was upgraded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}
