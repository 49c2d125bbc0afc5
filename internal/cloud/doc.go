// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package cloud is the client-side synchronization engine.

A Manager keeps the local playback state, configuration, playlists and
listen records of one desktop player consistent with the cloud service.

Components:
  - Session/identity: the linked account, its device and configuration ids,
    per-feature sync toggles and third-party links
  - Sync buffer: pending create/update/delete operations, coalesced per
    object and flushed by a debounce timer
  - Listen tracker: the play-event state machine with a persisted,
    stepped-backoff retry buffer
  - Reconciler: applies inbound realtime object events, including the
    ownership-directed playlist merge
  - Connectivity: the Connected gate, ping and reconnect loop
  - Bridge: buffers inbound realtime callbacks before reconciliation

Concurrency:

Outward work runs on bounded task queues, one per resource type:

	session    registration, identity, playlist fetch, follow
	sync       sync buffer flushes (one worker, insertion order)
	listens    listen submissions and retries
	reconcile  inbound object events (one worker, arrival order)

Every task runs under a link-scoped context. Delink cancels it, aborting
in-flight requests; Stop cancels everything and waits for the workers.
None of the public event methods wait on the network.
*/
package cloud
