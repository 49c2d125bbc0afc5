// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cadence/internal/models"
)

// ShareRequest publishes an object through every link that allows sharing.
type ShareRequest struct {
	ObjectType string `json:"object_type" validate:"required,oneof=songs playlists albums artists"`
	ObjectID   int64  `json:"object_id" validate:"gt=0"`
	Message    string `json:"message" validate:"max=1000"`
}

// SetLinkConsent changes the consents on the connected link for {provider}.
func (rt *Router) SetLinkConsent(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var consent models.LinkConsent
	if !decodeJSON(w, r, &consent) {
		return
	}
	if consent == (models.LinkConsent{}) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one consent is required", nil)
		return
	}
	if err := rt.deps.Engine.SetLinkConsent(r.Context(), provider, consent); err != nil {
		respondEngineError(w, err)
		return
	}
	var links []models.Link
	if ident := rt.deps.Engine.Identity(); ident != nil {
		links = ident.Links
	}
	respondOK(w, http.StatusOK, links)
}

// Share posts a share of an object.
func (rt *Router) Share(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := rt.deps.Engine.Share(r.Context(), req.ObjectType, req.ObjectID, req.Message); err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, req)
}
