// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cadence/internal/cloud"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/websocket"
)

// Engine is the part of the sync engine the control surface drives.
// Implemented by *cloud.Manager.
type Engine interface {
	Stats() cloud.Stats
	Identity() *models.Identity
	Link(ctx context.Context, creds models.Credentials) error
	Delink(ctx context.Context) error
	SetSyncFlags(ctx context.Context, flags cloud.SyncFlags) error
	SetListenSubmission(enabled bool)
	ListenSubmission() bool
	FlushNow(ctx context.Context)

	PlaybackChanged(state models.MediaState, track models.Track)
	ConfigChanged(field string, value any) error

	SyncPlaylists(ctx context.Context) error
	PlaylistCreated(name string) error
	PlaylistRenamed(oldName, newName string) error
	PlaylistTracksAdded(name string, paths []string) error
	PlaylistTracksRemoved(name string, paths []string) error
	PlaylistDeleted(p models.Playlist) error

	SetLinkConsent(ctx context.Context, provider string, consent models.LinkConsent) error
	Share(ctx context.Context, objectType string, id int64, message string) error
}

// BridgeHandler receives script-bridge callbacks. Implemented by *cloud.Bridge.
type BridgeHandler interface {
	Handle(ev models.ObjectEvent) error
}

// Deps are the collaborators behind the routes. Hub may be nil, which
// disables /ws.
type Deps struct {
	Engine  Engine
	Bridge  BridgeHandler
	Library *library.Library
	Player  *library.Player
	Hub     *websocket.Hub
}

// Router builds the chi handler for the control surface.
type Router struct {
	deps       Deps
	middleware *Middleware
}

// NewRouter validates deps. A nil middleware config uses the defaults.
func NewRouter(deps Deps, mwConfig *MiddlewareConfig) (*Router, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("api: engine is required")
	case deps.Bridge == nil:
		return nil, errors.New("api: bridge is required")
	case deps.Library == nil:
		return nil, errors.New("api: library is required")
	case deps.Player == nil:
		return nil, errors.New("api: player is required")
	}
	return &Router{deps: deps, middleware: NewMiddleware(mwConfig)}, nil
}

// Handler returns the routed handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetrics)
	r.Use(rt.middleware.CORS()) // global so OPTIONS preflight reaches it

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())

		r.Get("/status", rt.Status)
		r.Post("/link", rt.Link)
		r.Post("/delink", rt.Delink)
		r.Put("/identity/sync", rt.SetSyncFlags)
		r.Put("/listens", rt.SetListenSubmission)
		r.Post("/flush", rt.Flush)

		r.Post("/playback", rt.Playback)
		r.Put("/settings/{field}", rt.UpdateSetting)

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", rt.ListPlaylists)
			r.Post("/", rt.CreatePlaylist)
			r.Post("/sync", rt.SyncPlaylists)
			r.Put("/{name}", rt.RenamePlaylist)
			r.Delete("/{name}", rt.DeletePlaylist)
			r.Post("/{name}/tracks", rt.AddTracks)
			r.Delete("/{name}/tracks", rt.RemoveTracks)
		})

		r.Put("/links/{provider}", rt.SetLinkConsent)
		r.Post("/shares", rt.Share)
	})

	r.Post("/bridge/{event}", rt.BridgeEvent)

	if rt.deps.Hub != nil {
		r.Get("/ws", rt.WebSocket)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
