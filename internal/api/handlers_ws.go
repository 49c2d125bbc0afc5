// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/websocket"
)

// upgrader accepts same-host origins plus the configured CORS origins.
func (rt *Router) upgrader() *gorillaws.Upgrader {
	allowed := rt.middleware.config.CORSAllowedOrigins
	return &gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// WebSocket streams UI notifications.
func (rt *Router) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rt.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(rt.deps.Hub, conn)
	rt.deps.Hub.Register(client)
	client.Start()
}
