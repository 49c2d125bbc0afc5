// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// bridgeEvents maps callback path names to realtime event names.
var bridgeEvents = map[string]string{
	"update":     models.EventUpdate,
	"create":     models.EventCreate,
	"delete":     models.EventDelete,
	"execute":    models.EventExecute,
	"session":    models.EventSession,
	"link-error": models.EventLinkError,
	"link_error": models.EventLinkError,
}

// BridgeEvent accepts a script-bridge callback. The body carries the frame
// fields; the event name comes from the path.
func (rt *Router) BridgeEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "event")
	event, ok := bridgeEvents[name]
	if !ok {
		respondError(w, http.StatusNotFound, "UNKNOWN_EVENT", "Unknown bridge event "+sanitizeLogValue(name), nil)
		return
	}

	var ev models.ObjectEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	ev.Event = event

	if msg := checkBridgeEvent(ev); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return
	}
	if err := rt.deps.Bridge.Handle(ev); err != nil {
		logging.Debug().Err(err).Str("event", event).Msg("Bridge callback rejected")
		respondError(w, http.StatusBadRequest, "INVALID_EVENT", "Event payload could not be applied", nil)
		return
	}
	respondOK(w, http.StatusAccepted, nil)
}

// checkBridgeEvent returns a message naming the first missing field.
func checkBridgeEvent(ev models.ObjectEvent) string {
	switch ev.Event {
	case models.EventUpdate:
		if ev.Type == "" || ev.ID == 0 || len(ev.Data) == 0 {
			return "update requires type, id and data"
		}
	case models.EventCreate:
		if ev.Type == "" || len(ev.Data) == 0 {
			return "create requires type and data"
		}
	case models.EventDelete:
		if ev.Type == "" || ev.ID == 0 {
			return "delete requires type and id"
		}
	case models.EventExecute:
		if ev.Command == "" {
			return "execute requires command"
		}
	case models.EventSession:
		if ev.Message == "" {
			return "session requires message"
		}
	case models.EventLinkError:
		if ev.ID == 0 {
			return "link_error requires id"
		}
	}
	return ""
}
