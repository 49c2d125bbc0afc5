// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package services provides suture.Service wrappers for Cadence components.

The wrappers translate lifecycle patterns (Start/Stop, ListenAndServe) into
suture's context-aware Serve:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Available Services:

HTTP Server (HTTPServerService):
  - wraps *http.Server with graceful shutdown
  - configurable shutdown timeout for draining connections

Sync Engine (EngineService):
  - wraps cloud.Manager's Start/Stop lifecycle
  - Stop flushes what the buffer can still send before returning

Components that already implement Serve (websocket.Hub, realtime.Client,
store.GCService) are added to the tree directly.
*/
package services
