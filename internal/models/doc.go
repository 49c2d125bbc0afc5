// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package models defines the data structures shared by the Cadence sync engine.

Model Categories:

1. Session Models:
  - Identity: the linked cloud account on this device, with its feature toggles
  - Link: a connection to a third-party provider with capability/consent pairs
  - Credentials: the per-user OAuth token and secret

2. Outbound Models:
  - SyncOperation: a pending create/update/delete for the sync buffer
  - ListenRequest: a listen mutation waiting in the retry buffer

3. Remote Objects:
  - Device, Configuration, RemotePlaylist, Song, User

4. Local State:
  - Playlist, Track, PlayerSettings, RepeatMode, MediaState

5. Wire Events:
  - ObjectEvent: a realtime frame or script-bridge callback
  - Notification kinds pushed to the player UI

All remote ids are int64 with 0 meaning unset.
*/
package models
