// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "time"

// MediaState is the playback state reported by the player.
type MediaState string

const (
	MediaPlaying MediaState = "playing"
	MediaPaused  MediaState = "paused"
	MediaStopped MediaState = "stopped"
)

// ParseMediaState accepts the player's state names case-insensitively.
func ParseMediaState(s string) (MediaState, bool) {
	switch s {
	case "playing", "Playing", "play":
		return MediaPlaying, true
	case "paused", "Paused", "pause":
		return MediaPaused, true
	case "stopped", "Stopped", "stop":
		return MediaStopped, true
	}
	return "", false
}

// Track is a local track as reported by the player.
type Track struct {
	Path   string  `json:"path"`
	Title  string  `json:"title,omitempty"`
	Artist string  `json:"artist,omitempty"`
	Album  string  `json:"album,omitempty"`
	Genre  string  `json:"genre,omitempty"`
	Year   int     `json:"year,omitempty"`
	Number int     `json:"track,omitempty"`
	Length float64 `json:"length,omitempty"` // seconds
}

// SongParams encodes the track the way the service expects it inside listen
// and playlist payloads.
func (t Track) SongParams() map[string]any {
	p := map[string]any{"path": t.Path}
	if t.Title != "" {
		p["title"] = t.Title
	}
	if t.Artist != "" {
		p["artist"] = t.Artist
	}
	if t.Album != "" {
		p["album"] = t.Album
	}
	if t.Genre != "" {
		p["genre"] = t.Genre
	}
	if t.Year > 0 {
		p["year"] = t.Year
	}
	if t.Number > 0 {
		p["track"] = t.Number
	}
	if t.Length > 0 {
		p["length"] = t.Length
	}
	return p
}

// ListenRequest is a listen mutation that failed to reach the server and
// waits in the retry buffer. It is persisted across restarts.
type ListenRequest struct {
	Method    string         `json:"method"`
	Path      string         `json:"path"`
	Params    map[string]any `json:"params,omitempty"`
	TrackPath string         `json:"track_path,omitempty"`
	Queued    time.Time      `json:"queued"`
}

// Listen is the server's listen record as returned on create.
type Listen struct {
	ID        int64      `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
