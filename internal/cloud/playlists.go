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

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// syncingPlaylists reports whether playlist sync is effectively on.
func (m *Manager) syncingPlaylists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity != nil && m.identity.SyncPlaylists()
}

// SyncPlaylists performs the full two-way playlist merge: remote playlists
// are merged into the library, and local playlists the service has never
// seen are queued for upload.
func (m *Manager) SyncPlaylists(ctx context.Context) error {
	if !m.syncingPlaylists() {
		return nil
	}
	res, err := m.send(ctx, transportGet("/playlists.json"))
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}
	var remote []models.RemotePlaylist
	if err := res.Decode(&remote); err != nil {
		return fmt.Errorf("decode playlists: %w", err)
	}

	userID := m.userID()
	for _, r := range remote {
		if r.OwnerID != 0 && r.OwnerID != userID {
			if _, known := m.library.PlaylistByID(r.ID); !known {
				if err := m.follow(ctx, r.ID); err != nil {
					m.logger.Warn().Err(err).Int64("playlist_id", r.ID).Msg("Failed to follow playlist")
				}
			}
		}
		if err := m.mergePlaylist(r); err != nil {
			m.logger.Warn().Err(err).Int64("playlist_id", r.ID).Str("name", r.Name).Msg("Playlist merge failed")
		}
	}

	for _, p := range m.library.Playlists() {
		if p.ID == 0 && p.IsStandard() && p.OwnedBy(userID) {
			if err := m.Enqueue(models.SyncOperation{
				Command:    models.CommandCreate,
				ObjectType: "playlists",
				LocalRef:   p.Name,
				Params:     map[string]any{"name": p.Name},
			}); err != nil {
				return err
			}
		}
	}

	m.logger.Info().Int("remote", len(remote)).Msg("Playlists synchronized")
	m.notify(models.NotifyPlaylistsChanged, nil)
	return nil
}

func (m *Manager) follow(ctx context.Context, id int64) error {
	_, err := m.send(ctx, transportRequest(http.MethodPost, fmt.Sprintf("/playlists/%d/follow.json", id),
		http.StatusOK, http.StatusCreated, http.StatusNoContent))
	return err
}

// mergePlaylist folds one remote playlist into the library.
//
// Remote tracks missing locally are added. Local tracks missing remotely
// are uploaded when the user owns the playlist and removed when the user
// only follows it. Tracks already queued for upload are not queued again.
func (m *Manager) mergePlaylist(r models.RemotePlaylist) error {
	if r.ID == 0 {
		return errors.New("remote playlist has no id")
	}
	userID := m.userID()

	local, found := m.library.PlaylistByID(r.ID)
	if !found && r.Name != "" {
		if byName, ok := m.library.PlaylistByName(r.Name); ok && byName.ID == 0 {
			if err := m.library.SetPlaylistRemote(byName.Name, r.ID, r.OwnerID); err != nil {
				return err
			}
			m.buffer.dropRef(byName.Name)
			local, found = byName, true
			local.ID, local.OwnerID = r.ID, r.OwnerID
		}
	}
	if !found {
		name := r.Name
		if _, taken := m.library.PlaylistByName(name); taken || name == "" {
			name = fmt.Sprintf("%s (%d)", r.Name, r.ID)
		}
		created, err := m.library.CreatePlaylist(models.Playlist{
			Name:    name,
			ID:      r.ID,
			OwnerID: r.OwnerID,
			Filter:  r.Filter,
		})
		if err != nil {
			return err
		}
		local = created
	}

	if r.Name != "" && local.Name != r.Name {
		if err := m.library.RenamePlaylist(local.Name, r.Name); err == nil {
			local.Name = r.Name
		}
	}

	if r.Filter != "" || !local.IsStandard() {
		return m.library.SetFilter(local.Name, r.Filter)
	}

	remotePaths := r.TrackPaths()
	remoteSet := make(map[string]struct{}, len(remotePaths))
	for _, p := range remotePaths {
		remoteSet[p] = struct{}{}
	}
	m.clearPending(r.ID, remotePaths)

	var addLocal []string
	for _, p := range remotePaths {
		if !local.HasTrack(p) {
			addLocal = append(addLocal, p)
		}
	}
	if len(addLocal) > 0 {
		if err := m.library.AddTracks(local.Name, addLocal); err != nil {
			return err
		}
		metrics.PlaylistMergeChanges.WithLabelValues("added_local").Add(float64(len(addLocal)))
	}

	var localOnly []string
	for _, p := range local.Tracks {
		if _, ok := remoteSet[p]; !ok {
			localOnly = append(localOnly, p)
		}
	}
	if len(localOnly) == 0 {
		return nil
	}

	owned := r.OwnerID == 0 || r.OwnerID == userID
	if !owned {
		if err := m.library.RemoveTracks(local.Name, localOnly); err != nil {
			return err
		}
		metrics.PlaylistMergeChanges.WithLabelValues("removed_local").Add(float64(len(localOnly)))
		return nil
	}

	upload := m.takeUnpending(r.ID, localOnly)
	if len(upload) == 0 {
		return nil
	}
	metrics.PlaylistMergeChanges.WithLabelValues("queued_upload").Add(float64(len(upload)))
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "playlists",
		ObjectID:   r.ID,
		Params:     map[string]any{"songs": map[string]any{"added": m.songList(upload)}},
	})
}

// takeUnpending returns the paths not yet queued for playlistID and marks
// them queued.
func (m *Manager) takeUnpending(playlistID int64, paths []string) []string {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	set := m.pendingUploads[playlistID]
	if set == nil {
		set = make(map[string]struct{})
		m.pendingUploads[playlistID] = set
	}
	var out []string
	for _, p := range paths {
		if _, queued := set[p]; queued {
			continue
		}
		set[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// clearPending forgets queued uploads the service has now confirmed.
func (m *Manager) clearPending(playlistID int64, paths []string) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	set := m.pendingUploads[playlistID]
	if set == nil {
		return
	}
	for _, p := range paths {
		delete(set, p)
	}
	if len(set) == 0 {
		delete(m.pendingUploads, playlistID)
	}
}

func (m *Manager) clearPendingUploads() {
	m.pendingMu.Lock()
	m.pendingUploads = make(map[int64]map[string]struct{})
	m.pendingMu.Unlock()
}

// PendingUploads returns the queued-but-unconfirmed track paths of a playlist.
func (m *Manager) PendingUploads(playlistID int64) []string {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	out := make([]string, 0, len(m.pendingUploads[playlistID]))
	for p := range m.pendingUploads[playlistID] {
		out = append(out, p)
	}
	return out
}

// releasePendingUploads un-marks the tracks of a dropped upload so the
// next merge queues them again.
func (m *Manager) releasePendingUploads(op *models.SyncOperation) {
	if op.ObjectType != "playlists" || op.Command != models.CommandUpdate {
		return
	}
	m.clearPending(op.ObjectID, songPaths(op.Params, "added"))
}

// songPaths extracts the paths under params["songs"][list].
func songPaths(params map[string]any, list string) []string {
	songs, ok := params["songs"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := songs[list].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(map[string]any); ok {
			if p, _ := asString(s["path"]); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// PlaylistCreated queues the upload of a new local playlist.
func (m *Manager) PlaylistCreated(name string) error {
	if !m.syncingPlaylists() {
		return nil
	}
	p, ok := m.library.PlaylistByName(name)
	if !ok {
		return fmt.Errorf("playlist %q: %w", name, ErrPlaylistUnknown)
	}
	if p.ID != 0 || !p.IsStandard() {
		return nil
	}
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandCreate,
		ObjectType: "playlists",
		LocalRef:   name,
		Params:     map[string]any{"name": name},
	})
}

// PlaylistRenamed pushes a rename. A playlist whose create is still
// buffered is renamed in the buffer instead.
func (m *Manager) PlaylistRenamed(oldName, newName string) error {
	if !m.syncingPlaylists() {
		return nil
	}
	p, ok := m.library.PlaylistByName(newName)
	if !ok {
		return fmt.Errorf("playlist %q: %w", newName, ErrPlaylistUnknown)
	}
	if p.ID == 0 {
		m.buffer.renameRef(oldName, newName)
		return nil
	}
	if !p.OwnedBy(m.userID()) {
		return nil
	}
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "playlists",
		ObjectID:   p.ID,
		Params:     map[string]any{"name": newName},
	})
}

// PlaylistTracksAdded pushes tracks added to an owned playlist.
func (m *Manager) PlaylistTracksAdded(name string, paths []string) error {
	p, ok := m.pushablePlaylist(name)
	if !ok || len(paths) == 0 {
		return nil
	}
	upload := m.takeUnpending(p.ID, paths)
	if len(upload) == 0 {
		return nil
	}
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "playlists",
		ObjectID:   p.ID,
		Params:     map[string]any{"songs": map[string]any{"added": m.songList(upload)}},
	})
}

// PlaylistTracksRemoved pushes tracks removed from an owned playlist.
func (m *Manager) PlaylistTracksRemoved(name string, paths []string) error {
	p, ok := m.pushablePlaylist(name)
	if !ok || len(paths) == 0 {
		return nil
	}
	m.clearPending(p.ID, paths)
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "playlists",
		ObjectID:   p.ID,
		Params:     map[string]any{"songs": map[string]any{"removed": m.songList(paths)}},
	})
}

// pushablePlaylist returns the playlist when its track edits should be
// pushed: sync is on, it is known remotely, standard and owned.
func (m *Manager) pushablePlaylist(name string) (models.Playlist, bool) {
	if !m.syncingPlaylists() {
		return models.Playlist{}, false
	}
	p, ok := m.library.PlaylistByName(name)
	if !ok || p.ID == 0 || !p.IsStandard() || !p.OwnedBy(m.userID()) {
		return models.Playlist{}, false
	}
	return p, true
}

// PlaylistDeleted pushes the removal of a local playlist. Owned playlists
// are deleted remotely; followed ones are unfollowed.
func (m *Manager) PlaylistDeleted(p models.Playlist) error {
	if !m.syncingPlaylists() {
		return nil
	}
	if p.ID == 0 {
		m.buffer.dropRef(p.Name)
		return nil
	}
	m.clearPending(p.ID, p.Tracks)
	if p.OwnedBy(m.userID()) {
		return m.Enqueue(models.SyncOperation{
			Command:    models.CommandDelete,
			ObjectType: "playlists",
			ObjectID:   p.ID,
		})
	}
	id := p.ID
	m.submit(m.syncQ, "unfollow", func(ctx context.Context) {
		_, err := m.send(ctx, transportRequest(http.MethodDelete, fmt.Sprintf("/playlists/%d/follow.json", id),
			http.StatusOK, http.StatusNoContent))
		if err != nil {
			m.logger.Warn().Err(err).Int64("playlist_id", id).Msg("Failed to unfollow playlist")
		}
	})
	return nil
}
