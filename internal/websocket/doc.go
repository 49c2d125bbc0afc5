// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package websocket pushes engine notifications to the player UI.

The engine reports property changes (links, identity, connectivity,
playlists, configuration, link errors) through the Notifier interface. The
Hub implements it by broadcasting a typed Message to every connected UI
client over gorilla/websocket.

Key Components:

  - Hub: client registry and broadcaster; Serve runs it under suture
  - Client: one WebSocket connection with read and write pumps
  - Message: {"type": kind, "data": payload, "timestamp": RFC3339}

Architecture:

	┌──────────┐
	│  Engine  │ Notify(kind, data)
	└────┬─────┘
	     │
	┌────┴─────┐
	│   Hub    │ ← broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┐
	│ Client1  │ Client2 │ ...
	└──────────┴─────────┘

Each client has two goroutines:
  - readPump: reads from the socket, answers application pings
  - writePump: writes queued messages and keep-alive pings

A client whose send buffer is full is dropped rather than blocking the
broadcast loop. Notify never blocks the engine: a full broadcast channel
drops the notification and counts it.

Determinism:

Clients are sorted by a monotonically increasing id before broadcast and
shutdown so delivery order is stable.
*/
package websocket
