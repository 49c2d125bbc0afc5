// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "strings"

// Device is this installation as the service knows it.
type Device struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Version         string `json:"version,omitempty"`
	UserID          int64  `json:"user_id,omitempty"`
	ConfigurationID int64  `json:"configuration_id,omitempty"`
}

// Configuration is a remote sync profile shared by devices.
type Configuration struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Shuffle      bool    `json:"shuffle"`
	Repeat       string  `json:"repeat,omitempty"`
	Volume       float64 `json:"volume"`
	MediaState   string  `json:"media_state,omitempty"`
	CurrentTrack *Song   `json:"current_track,omitempty"`
}

// RepeatMode is the player's repeat setting.
type RepeatMode int

const (
	NoRepeat RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the service's name for the mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "RepeatAll"
	case RepeatOne:
		return "RepeatOne"
	default:
		return "NoRepeat"
	}
}

// ParseRepeatMode translates the service vocabulary. Unknown values report false.
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "norepeat", "no_repeat", "none", "off":
		return NoRepeat, true
	case "repeatall", "repeat_all", "all":
		return RepeatAll, true
	case "repeatone", "repeat_one", "one":
		return RepeatOne, true
	}
	return NoRepeat, false
}

// PlayerSettings is the local player state that configuration sync mirrors.
type PlayerSettings struct {
	Shuffle      bool       `json:"shuffle"`
	Repeat       RepeatMode `json:"repeat"`
	Volume       float64    `json:"volume"`
	CurrentTrack string     `json:"current_track,omitempty"`
	MediaState   MediaState `json:"media_state,omitempty"`
}
