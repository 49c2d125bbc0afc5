// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package library holds the daemon's mirror of the player's local state:
// its playlists, known tracks and player settings. The sync engine reads and
// mutates it through the cloud.Library and cloud.Player interfaces; the local
// API feeds it from the desktop player.
package library

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/cadence/internal/models"
)

var (
	// ErrPlaylistNotFound is returned for an unknown playlist name.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrPlaylistExists is returned when creating a playlist whose name is taken.
	ErrPlaylistExists = errors.New("playlist already exists")
)

// ChangeFunc observes mutations. kind is a models.Notify* constant.
type ChangeFunc func(kind string, data any)

// Library is an in-memory playlist collection keyed by name. Safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	playlists map[string]*models.Playlist
	tracks    map[string]models.Track
	onChange  ChangeFunc
}

// New returns an empty library. onChange may be nil.
func New(onChange ChangeFunc) *Library {
	return &Library{
		playlists: make(map[string]*models.Playlist),
		tracks:    make(map[string]models.Track),
		onChange:  onChange,
	}
}

// SetOnChange replaces the change observer.
func (l *Library) SetOnChange(fn ChangeFunc) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Playlists returns copies of every playlist sorted by name.
func (l *Library) Playlists() []models.Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Playlist, 0, len(l.playlists))
	for _, p := range l.playlists {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PlaylistByID returns the playlist with remote id, if any.
func (l *Library) PlaylistByID(id int64) (models.Playlist, bool) {
	if id == 0 {
		return models.Playlist{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.playlists {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return models.Playlist{}, false
}

// PlaylistByName returns the playlist called name, if any.
func (l *Library) PlaylistByName(name string) (models.Playlist, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.playlists[name]
	if !ok {
		return models.Playlist{}, false
	}
	return p.Clone(), true
}

// CreatePlaylist adds p. Duplicate tracks are dropped.
func (l *Library) CreatePlaylist(p models.Playlist) (models.Playlist, error) {
	if p.Name == "" {
		return models.Playlist{}, fmt.Errorf("playlist name is required")
	}
	l.mu.Lock()
	if _, ok := l.playlists[p.Name]; ok {
		l.mu.Unlock()
		return models.Playlist{}, fmt.Errorf("%w: %s", ErrPlaylistExists, p.Name)
	}
	np := p.Clone()
	np.Tracks = dedupe(np.Tracks)
	l.playlists[np.Name] = &np
	out := np.Clone()
	l.mu.Unlock()

	l.changed()
	return out, nil
}

// SetPlaylistRemote records the remote id and owner of a local playlist.
func (l *Library) SetPlaylistRemote(name string, id, ownerID int64) error {
	return l.mutate(name, func(p *models.Playlist) {
		p.ID = id
		if ownerID != 0 {
			p.OwnerID = ownerID
		}
	})
}

// SetFilter replaces the playlist's filter.
func (l *Library) SetFilter(name, filter string) error {
	return l.mutate(name, func(p *models.Playlist) { p.Filter = filter })
}

// RenamePlaylist moves a playlist to a new name.
func (l *Library) RenamePlaylist(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	l.mu.Lock()
	p, ok := l.playlists[oldName]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, oldName)
	}
	if _, taken := l.playlists[newName]; taken {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaylistExists, newName)
	}
	delete(l.playlists, oldName)
	p.Name = newName
	l.playlists[newName] = p
	l.mu.Unlock()

	l.changed()
	return nil
}

// AddTracks appends paths not already present.
func (l *Library) AddTracks(name string, paths []string) error {
	return l.mutate(name, func(p *models.Playlist) {
		p.Tracks = dedupe(append(p.Tracks, paths...))
	})
}

// RemoveTracks drops every occurrence of paths.
func (l *Library) RemoveTracks(name string, paths []string) error {
	drop := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		drop[path] = struct{}{}
	}
	return l.mutate(name, func(p *models.Playlist) {
		kept := p.Tracks[:0]
		for _, t := range p.Tracks {
			if _, ok := drop[t]; !ok {
				kept = append(kept, t)
			}
		}
		p.Tracks = kept
	})
}

// DeletePlaylist removes a playlist and returns it.
func (l *Library) DeletePlaylist(name string) (models.Playlist, error) {
	l.mu.Lock()
	p, ok := l.playlists[name]
	if !ok {
		l.mu.Unlock()
		return models.Playlist{}, fmt.Errorf("%w: %s", ErrPlaylistNotFound, name)
	}
	delete(l.playlists, name)
	out := p.Clone()
	l.mu.Unlock()

	l.changed()
	return out, nil
}

// PutTrack records metadata for a track path.
func (l *Library) PutTrack(t models.Track) {
	if t.Path == "" {
		return
	}
	l.mu.Lock()
	l.tracks[t.Path] = t
	l.mu.Unlock()
}

// Track returns metadata for path. Unknown paths come back with only Path set.
func (l *Library) Track(path string) models.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := l.tracks[path]; ok {
		return t
	}
	return models.Track{Path: path}
}

func (l *Library) mutate(name string, fn func(p *models.Playlist)) error {
	l.mu.Lock()
	p, ok := l.playlists[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, name)
	}
	fn(p)
	l.mu.Unlock()

	l.changed()
	return nil
}

func (l *Library) changed() {
	l.mu.RLock()
	fn := l.onChange
	l.mu.RUnlock()
	if fn != nil {
		fn(models.NotifyPlaylistsChanged, nil)
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
