// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package api provides the local control surface of the sync engine.

The desktop player reports playback, settings and playlist edits over a
small JSON API, and the embedded browser's script bridge delivers realtime
callbacks. Responses use the models.APIResponse envelope.

# Routes

	GET  /api/v1/status                    engine status and identity
	POST /api/v1/link                      link an account {token, secret}
	POST /api/v1/delink                    forget the account
	PUT  /api/v1/identity/sync             synchronize toggles
	PUT  /api/v1/listens                   listen submission on/off
	POST /api/v1/flush                     flush the sync buffer now
	POST /api/v1/playback                  media state and current track
	PUT  /api/v1/settings/{field}          shuffle, repeat, volume, current_track, media_state
	POST /api/v1/playlists                 create a playlist
	POST /api/v1/playlists/sync            merge with the remote playlists
	PUT  /api/v1/playlists/{name}          rename
	POST /api/v1/playlists/{name}/tracks   add tracks
	DELETE /api/v1/playlists/{name}/tracks remove tracks
	DELETE /api/v1/playlists/{name}        delete or unfollow
	PUT  /api/v1/links/{provider}          link consents
	POST /api/v1/shares                    share an object
	POST /bridge/{event}                   update, create, delete, execute, session, link-error
	GET  /ws                               UI notification stream
	GET  /metrics                          Prometheus metrics

# Middleware

Every route runs behind chi's RequestID, RealIP and Recoverer middleware,
Prometheus instrumentation keyed by route pattern, and go-chi/cors. The
/api/v1 group is rate limited with go-chi/httprate.
*/
package api
