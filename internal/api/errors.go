// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/cadence/internal/cloud"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/transport"
)

// respondEngineError maps engine, library and transport errors to a status.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cloud.ErrNotLinked):
		respondError(w, http.StatusConflict, "NOT_LINKED", "No account is linked", nil)
	case errors.Is(err, cloud.ErrLinkNotFound):
		respondError(w, http.StatusNotFound, "LINK_NOT_FOUND", "No connected link for provider", nil)
	case errors.Is(err, cloud.ErrNoShareTargets):
		respondError(w, http.StatusConflict, "NO_SHARE_TARGETS", "No connected link allows sharing", nil)
	case errors.Is(err, cloud.ErrPlaylistUnknown), errors.Is(err, library.ErrPlaylistNotFound):
		respondError(w, http.StatusNotFound, "PLAYLIST_NOT_FOUND", "Playlist not found", nil)
	case errors.Is(err, library.ErrPlaylistExists):
		respondError(w, http.StatusConflict, "PLAYLIST_EXISTS", "Playlist already exists", nil)
	case errors.Is(err, cloud.ErrQueueClosed), errors.Is(err, cloud.ErrNotRunning):
		respondError(w, http.StatusServiceUnavailable, "ENGINE_STOPPED", "Sync engine is not running", err)
	case transport.IsKind(err, transport.Unauthorized):
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Service rejected the credentials", err)
	case transport.IsTransportFailure(err):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNREACHABLE", "Cloud service is unreachable", err)
	default:
		if _, ok := transport.KindOf(err); ok {
			respondError(w, http.StatusBadGateway, "SERVICE_ERROR", "Cloud service request failed", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error", err)
	}
}
