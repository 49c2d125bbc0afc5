// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

// Playlist is a local playlist. Local playlists are keyed by name; ID is the
// remote id once the playlist is known to the service.
type Playlist struct {
	Name    string   `json:"name"`
	ID      int64    `json:"id,omitempty"`
	OwnerID int64    `json:"owner_id,omitempty"`
	Filter  string   `json:"filter,omitempty"`
	Tracks  []string `json:"tracks"`
}

// IsStandard reports whether the playlist holds explicit tracks rather than a filter.
func (p Playlist) IsStandard() bool { return p.Filter == "" }

// OwnedBy reports whether userID owns the playlist. Playlists with no
// recorded owner are local and therefore owned.
func (p Playlist) OwnedBy(userID int64) bool {
	return p.OwnerID == 0 || p.OwnerID == userID
}

// HasTrack reports whether path is in the playlist.
func (p Playlist) HasTrack(path string) bool {
	for _, t := range p.Tracks {
		if t == path {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own track slice.
func (p Playlist) Clone() Playlist {
	p.Tracks = append([]string(nil), p.Tracks...)
	return p
}

// Song is a track as the service represents it.
type Song struct {
	ID     int64   `json:"id,omitempty"`
	Path   string  `json:"path"`
	Title  string  `json:"title,omitempty"`
	Artist string  `json:"artist,omitempty"`
	Album  string  `json:"album,omitempty"`
	Length float64 `json:"length,omitempty"`
}

// RemotePlaylist is a playlist object as the service sends it.
type RemotePlaylist struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
	Filter  string `json:"filter,omitempty"`
	Songs   []Song `json:"songs"`
}

// TrackPaths returns the remote track paths in order.
func (r RemotePlaylist) TrackPaths() []string {
	paths := make([]string, 0, len(r.Songs))
	for _, s := range r.Songs {
		if s.Path != "" {
			paths = append(paths, s.Path)
		}
	}
	return paths
}
