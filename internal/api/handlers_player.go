// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// PlaybackRequest reports the player state and the track it applies to.
type PlaybackRequest struct {
	State string       `json:"state" validate:"required"`
	Track models.Track `json:"track"`
}

// SettingRequest carries one setting value. Its JSON type depends on the field.
type SettingRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}

// Playback feeds the listen tracker and mirrors state into the settings.
func (rt *Router) Playback(w http.ResponseWriter, r *http.Request) {
	var req PlaybackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, ok := models.ParseMediaState(req.State)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "state must be one of: playing paused stopped", nil)
		return
	}
	if state == models.MediaPlaying && req.Track.Path == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "track.path is required while playing", nil)
		return
	}

	player := rt.deps.Player
	prev := player.Settings()

	if req.Track.Path != "" {
		rt.deps.Library.PutTrack(req.Track)
		if req.Track.Path != prev.CurrentTrack {
			player.SetCurrentTrack(req.Track.Path)
			rt.pushSetting("current_track", req.Track.Path)
		}
	}
	if state != prev.MediaState {
		player.SetMediaState(state)
		rt.pushSetting("media_state", state)
	}

	rt.deps.Engine.PlaybackChanged(state, req.Track)
	respondOK(w, http.StatusOK, player.Settings())
}

// UpdateSetting applies a local setting and pushes it to the configuration.
func (rt *Router) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	var req SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	player := rt.deps.Player
	var pushed any
	switch field {
	case "shuffle":
		var v bool
		if !decodeSetting(w, req.Value, &v, "value must be a boolean") {
			return
		}
		player.SetShuffle(v)
		pushed = v
	case "repeat":
		var s string
		if !decodeSetting(w, req.Value, &s, "value must be a string") {
			return
		}
		mode, ok := models.ParseRepeatMode(s)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must be one of: NoRepeat RepeatAll RepeatOne", nil)
			return
		}
		player.SetRepeat(mode)
		pushed = mode
	case "volume":
		var v float64
		if !decodeSetting(w, req.Value, &v, "value must be a number") {
			return
		}
		player.SetVolume(v)
		pushed = player.Settings().Volume
	case "current_track":
		var path string
		if !decodeSetting(w, req.Value, &path, "value must be a string") {
			return
		}
		player.SetCurrentTrack(path)
		pushed = path
	case "media_state":
		var s string
		if !decodeSetting(w, req.Value, &s, "value must be a string") {
			return
		}
		state, ok := models.ParseMediaState(s)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must be one of: playing paused stopped", nil)
			return
		}
		player.SetMediaState(state)
		pushed = state
	default:
		respondError(w, http.StatusNotFound, "UNKNOWN_SETTING", "Unknown setting "+sanitizeLogValue(field), nil)
		return
	}

	if err := rt.deps.Engine.ConfigChanged(field, pushed); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusOK, player.Settings())
}

func decodeSetting(w http.ResponseWriter, raw json.RawMessage, v any, message string) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
		return false
	}
	return true
}

// pushSetting forwards a setting changed as a side effect of playback.
func (rt *Router) pushSetting(field string, value any) {
	if err := rt.deps.Engine.ConfigChanged(field, value); err != nil {
		logging.Debug().Err(err).Str("field", field).Msg("Setting not pushed")
	}
}
