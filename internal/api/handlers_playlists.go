// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cadence/internal/models"
)

// CreatePlaylistRequest creates a local playlist. Filter makes it dynamic.
type CreatePlaylistRequest struct {
	Name   string   `json:"name" validate:"required,max=255"`
	Filter string   `json:"filter"`
	Tracks []string `json:"tracks" validate:"dive,required"`
}

// RenamePlaylistRequest renames the playlist in the path.
type RenamePlaylistRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// TracksRequest lists track paths to add or remove.
type TracksRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
}

// ListPlaylists returns the local playlists.
func (rt *Router) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, rt.deps.Library.Playlists())
}

// CreatePlaylist adds a local playlist and queues its upload.
func (rt *Router) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := rt.deps.Library.CreatePlaylist(models.Playlist{Name: req.Name, Filter: req.Filter, Tracks: req.Tracks})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if err := rt.deps.Engine.PlaylistCreated(p.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, p)
}

// SyncPlaylists merges local and remote playlists now.
func (rt *Router) SyncPlaylists(w http.ResponseWriter, r *http.Request) {
	if err := rt.deps.Engine.SyncPlaylists(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusOK, rt.deps.Library.Playlists())
}

// RenamePlaylist renames locally and pushes the new name.
func (rt *Router) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	oldName := playlistName(r)
	var req RenamePlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := rt.deps.Library.RenamePlaylist(oldName, req.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := rt.deps.Engine.PlaylistRenamed(oldName, req.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	rt.respondPlaylist(w, req.Name)
}

// AddTracks appends tracks and pushes them for owned playlists.
func (rt *Router) AddTracks(w http.ResponseWriter, r *http.Request) {
	name := playlistName(r)
	var req TracksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := rt.deps.Library.AddTracks(name, req.Paths); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := rt.deps.Engine.PlaylistTracksAdded(name, req.Paths); err != nil {
		respondEngineError(w, err)
		return
	}
	rt.respondPlaylist(w, name)
}

// RemoveTracks removes tracks and pushes the removal for owned playlists.
func (rt *Router) RemoveTracks(w http.ResponseWriter, r *http.Request) {
	name := playlistName(r)
	var req TracksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := rt.deps.Library.RemoveTracks(name, req.Paths); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := rt.deps.Engine.PlaylistTracksRemoved(name, req.Paths); err != nil {
		respondEngineError(w, err)
		return
	}
	rt.respondPlaylist(w, name)
}

// DeletePlaylist removes the playlist locally. Owned playlists are deleted
// remotely, followed ones unfollowed.
func (rt *Router) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := rt.deps.Library.DeletePlaylist(playlistName(r))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if err := rt.deps.Engine.PlaylistDeleted(p); err != nil {
		respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) respondPlaylist(w http.ResponseWriter, name string) {
	p, ok := rt.deps.Library.PlaylistByName(name)
	if !ok {
		respondError(w, http.StatusNotFound, "PLAYLIST_NOT_FOUND", "Playlist not found", nil)
		return
	}
	respondOK(w, http.StatusOK, p)
}

// playlistName returns the unescaped {name} parameter. chi matches on the
// raw path when the name contains escaped characters.
func playlistName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
