// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "github.com/goccy/go-json"

// Realtime event names. They double as script-bridge callback names.
const (
	EventUpdate    = "update"
	EventCreate    = "create"
	EventDelete    = "delete"
	EventExecute   = "execute"
	EventSession   = "session"
	EventLinkError = "link_error"
)

// ObjectEvent is one inbound realtime frame.
type ObjectEvent struct {
	Event   string          `json:"event"`
	Type    string          `json:"type,omitempty"`
	ID      int64           `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Command string          `json:"command,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Notification kinds pushed to the player UI.
const (
	NotifyLinksChanged         = "links_changed"
	NotifyIdentityChanged      = "identity_changed"
	NotifyConnectivityChanged  = "connectivity_changed"
	NotifyPlaylistsChanged     = "playlists_changed"
	NotifyConfigurationChanged = "configuration_changed"
	NotifyLinkError            = "link_error"
	NotifyPlayerCommand        = "player_command"
)

// ShareRequest is the POST /shares.json payload.
type ShareRequest struct {
	ObjectType string   `json:"object_type"`
	ObjectID   int64    `json:"object_id"`
	Message    string   `json:"message,omitempty"`
	Providers  []string `json:"providers"`
}
