// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"

	"github.com/tomtom215/cadence/internal/cloud"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// StatusResponse is the GET /api/v1/status payload.
type StatusResponse struct {
	Stats            cloud.Stats           `json:"stats"`
	Identity         *models.Identity      `json:"identity,omitempty"`
	ListenSubmission bool                  `json:"listen_submission"`
	Player           models.PlayerSettings `json:"player"`
}

// LinkRequest carries the OAuth token pair obtained by the player.
type LinkRequest struct {
	Token  string `json:"token" validate:"required"`
	Secret string `json:"secret" validate:"required"`
}

// ListenToggleRequest turns listen submission on or off.
type ListenToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Status reports engine state.
func (rt *Router) Status(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, StatusResponse{
		Stats:            rt.deps.Engine.Stats(),
		Identity:         rt.deps.Engine.Identity(),
		ListenSubmission: rt.deps.Engine.ListenSubmission(),
		Player:           rt.deps.Player.Settings(),
	})
}

// Link stores the credentials and registers this device.
func (rt *Router) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	creds := models.Credentials{Token: req.Token, Secret: req.Secret}
	if err := rt.deps.Engine.Link(r.Context(), creds); err != nil {
		respondEngineError(w, err)
		return
	}
	logging.Info().Msg("Account linked through control API")
	respondOK(w, http.StatusOK, rt.deps.Engine.Identity())
}

// Delink forgets the account and cancels its in-flight work.
func (rt *Router) Delink(w http.ResponseWriter, r *http.Request) {
	if err := rt.deps.Engine.Delink(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusOK, nil)
}

// SetSyncFlags applies a partial change of the synchronize toggles.
func (rt *Router) SetSyncFlags(w http.ResponseWriter, r *http.Request) {
	var flags cloud.SyncFlags
	if !decodeJSON(w, r, &flags) {
		return
	}
	if err := rt.deps.Engine.SetSyncFlags(r.Context(), flags); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusOK, rt.deps.Engine.Identity())
}

// SetListenSubmission toggles listen tracking.
func (rt *Router) SetListenSubmission(w http.ResponseWriter, r *http.Request) {
	var req ListenToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.deps.Engine.SetListenSubmission(*req.Enabled)
	respondOK(w, http.StatusOK, map[string]bool{"enabled": rt.deps.Engine.ListenSubmission()})
}

// Flush sends the sync buffer without waiting for the debounce delay.
func (rt *Router) Flush(w http.ResponseWriter, r *http.Request) {
	rt.deps.Engine.FlushNow(r.Context())
	respondOK(w, http.StatusOK, map[string]int{"buffered_operations": rt.deps.Engine.Stats().BufferedOperations})
}
