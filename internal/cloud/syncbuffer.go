// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/transport"
)

// syncBuffer holds pending outbound operations in arrival order. Updates
// to the same (type, id) coalesce into the first pending one.
type syncBuffer struct {
	mu    sync.Mutex
	ops   []*models.SyncOperation
	index map[string]*models.SyncOperation
}

func newSyncBuffer() *syncBuffer {
	return &syncBuffer{index: make(map[string]*models.SyncOperation)}
}

// add appends op or merges it into a pending update. It reports whether
// op was coalesced.
func (b *syncBuffer) add(op models.SyncOperation) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(&op)
}

func (b *syncBuffer) addLocked(op *models.SyncOperation) bool {
	if op.Coalescable() {
		if existing, ok := b.index[op.Key()]; ok {
			if existing.Params == nil {
				existing.Params = make(map[string]any)
			}
			mergeParams(existing.Params, op.Params)
			return true
		}
	}
	op.Params = cloneParams(op.Params)
	b.ops = append(b.ops, op)
	if op.Coalescable() {
		b.index[op.Key()] = op
	}
	metrics.SyncBufferSize.Set(float64(len(b.ops)))
	return false
}

// swap empties the buffer and returns what it held.
func (b *syncBuffer) swap() []*models.SyncOperation {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := b.ops
	b.ops = nil
	b.index = make(map[string]*models.SyncOperation)
	metrics.SyncBufferSize.Set(0)
	return ops
}

// restore puts unsent operations back ahead of anything enqueued since the
// swap. Updates enqueued meanwhile fold into their restored counterparts.
func (b *syncBuffer) restore(unsent []*models.SyncOperation) {
	if len(unsent) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	later := b.ops
	b.ops = nil
	b.index = make(map[string]*models.SyncOperation)
	for _, op := range unsent {
		b.addLocked(op)
	}
	for _, op := range later {
		b.addLocked(op)
	}
}

func (b *syncBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// snapshot returns copies of the pending operations.
func (b *syncBuffer) snapshot() []models.SyncOperation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.SyncOperation, len(b.ops))
	for i, op := range b.ops {
		out[i] = *op
		out[i].Params = cloneParams(op.Params)
	}
	return out
}

// renameRef points pending creates for oldName at newName.
func (b *syncBuffer) renameRef(oldName, newName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	for _, op := range b.ops {
		if op.Command == models.CommandCreate && op.LocalRef == oldName {
			op.LocalRef = newName
			if op.Params != nil {
				op.Params["name"] = newName
			}
			found = true
		}
	}
	return found
}

// dropRef removes pending creates for name and reports whether any existed.
func (b *syncBuffer) dropRef(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.ops[:0]
	found := false
	for _, op := range b.ops {
		if op.Command == models.CommandCreate && op.LocalRef == name {
			found = true
			continue
		}
		kept = append(kept, op)
	}
	for i := len(kept); i < len(b.ops); i++ {
		b.ops[i] = nil
	}
	b.ops = kept
	metrics.SyncBufferSize.Set(float64(len(b.ops)))
	return found
}

// Enqueue adds an outbound operation to the sync buffer and (re)arms the
// flush delay.
func (m *Manager) Enqueue(op models.SyncOperation) error {
	if !op.Command.Valid() {
		return fmt.Errorf("enqueue: invalid command %q", op.Command)
	}
	if op.ObjectType == "" {
		return errors.New("enqueue: object type is required")
	}
	if op.Command != models.CommandCreate && op.ObjectID == 0 {
		return fmt.Errorf("enqueue %s %s: object id is required", op.Command, op.ObjectType)
	}

	metrics.SyncOperationsEnqueued.WithLabelValues(string(op.Command), op.ObjectType).Inc()
	if m.buffer.add(op) {
		metrics.SyncOperationsCoalesced.Inc()
	}
	m.flushDebounce.Trigger()
	return nil
}

// PendingOperations returns a copy of the sync buffer.
func (m *Manager) PendingOperations() []models.SyncOperation {
	return m.buffer.snapshot()
}

// FlushNow sends the sync buffer immediately instead of waiting for the delay.
func (m *Manager) FlushNow(ctx context.Context) {
	m.flushDebounce.Cancel()
	m.flush(ctx)
}

// scheduleFlush runs when the flush delay expires.
func (m *Manager) scheduleFlush() {
	m.submit(m.syncQ, "flush", m.flush)
}

// flush sends every buffered operation in order. While offline the buffer
// is kept. A connection loss mid-flush puts the unsent remainder back;
// any other failure drops that operation.
func (m *Manager) flush(ctx context.Context) {
	if !m.Connected() {
		return
	}
	ops := m.buffer.swap()
	if len(ops) == 0 {
		return
	}
	m.flushes.Add(1)
	metrics.SyncFlushes.Inc()

	for i, op := range ops {
		err := m.sendOperation(ctx, op)
		if err == nil {
			m.sent.Add(1)
			metrics.RecordSyncResult(string(op.Command), op.ObjectType, nil)
			continue
		}
		if transport.IsTransportFailure(err) || ctx.Err() != nil {
			m.logger.Info().Err(err).Int("remaining", len(ops)-i).Msg("Flush interrupted; keeping operations for reconnect")
			if !errors.Is(ctx.Err(), context.Canceled) {
				m.buffer.restore(ops[i:])
			}
			return
		}
		m.dropped.Add(1)
		metrics.RecordSyncResult(string(op.Command), op.ObjectType, err)
		m.logger.Warn().Err(err).
			Str("command", string(op.Command)).
			Str("object_type", op.ObjectType).
			Int64("object_id", op.ObjectID).
			Msg("Dropping sync operation")
		m.releasePendingUploads(op)
	}
}

// sendOperation maps one operation onto its REST call.
func (m *Manager) sendOperation(ctx context.Context, op *models.SyncOperation) error {
	params := op.Params
	if op.Command == models.CommandCreate && op.ObjectType == "playlists" && op.LocalRef != "" {
		p, ok := m.library.PlaylistByName(op.LocalRef)
		if !ok || p.ID != 0 {
			m.logger.Debug().Str("playlist", op.LocalRef).Msg("Skipping create for a playlist that is gone or already uploaded")
			return nil
		}
		params = m.playlistCreateParams(p)
	}

	query, body := encodeParams(singular(op.ObjectType), params)
	req := transport.Request{Query: query, Body: body}
	switch op.Command {
	case models.CommandCreate:
		req.Method = http.MethodPost
		req.Path = resourcePath(op.ObjectType, 0)
		req.Expect = []int{http.StatusCreated}
	case models.CommandUpdate:
		req.Method = http.MethodPut
		req.Path = resourcePath(op.ObjectType, op.ObjectID)
		req.Expect = []int{http.StatusOK, http.StatusNoContent}
	case models.CommandDelete:
		req.Method = http.MethodDelete
		req.Path = resourcePath(op.ObjectType, op.ObjectID)
		req.Expect = []int{http.StatusNoContent, http.StatusOK}
	}

	res, err := m.send(ctx, req)
	if err != nil {
		return err
	}

	if op.Command == models.CommandCreate && op.ObjectType == "playlists" && op.LocalRef != "" {
		var created struct {
			ID int64 `json:"id"`
		}
		if err := res.Decode(&created); err != nil {
			return err
		}
		if created.ID == 0 {
			return &transport.Error{Kind: transport.Malformed, Op: "POST " + req.Path, Status: res.Status, Err: errors.New("missing playlist id")}
		}
		if err := m.library.SetPlaylistRemote(op.LocalRef, created.ID, m.userID()); err != nil {
			m.logger.Warn().Err(err).Str("playlist", op.LocalRef).Msg("Created playlist vanished locally")
			return nil
		}
		m.logger.Info().Str("playlist", op.LocalRef).Int64("playlist_id", created.ID).Msg("Playlist uploaded")
		m.notify(models.NotifyPlaylistsChanged, nil)
	}
	return nil
}

// playlistCreateParams builds the create payload from the playlist as it
// is now, so edits made while the create was buffered are included.
func (m *Manager) playlistCreateParams(p models.Playlist) map[string]any {
	params := map[string]any{"name": p.Name}
	if len(p.Tracks) > 0 {
		params["songs"] = map[string]any{"added": m.songList(p.Tracks)}
	}
	return params
}

// songList encodes local track paths for a songs.added/songs.removed list.
func (m *Manager) songList(paths []string) []any {
	out := make([]any, 0, len(paths))
	for _, path := range paths {
		out = append(out, m.library.Track(path).SongParams())
	}
	return out
}
