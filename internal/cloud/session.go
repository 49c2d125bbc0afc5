// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/store"
)

// Linked reports whether an account is linked and its identity is known.
func (m *Manager) Linked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Valid() && m.identity != nil
}

// Identity returns a copy of the linked identity, or nil.
func (m *Manager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.Clone()
}

// userID returns the linked user id, or 0.
func (m *Manager) userID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return 0
	}
	return m.identity.UserID
}

// deviceID returns the registered device id, or 0.
func (m *Manager) deviceID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return 0
	}
	return m.identity.DeviceID
}

// updateIdentity applies fn to the live identity, persists it and notifies.
// It returns false when nothing is linked.
func (m *Manager) updateIdentity(ctx context.Context, fn func(id *models.Identity)) bool {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return false
	}
	fn(m.identity)
	snapshot := m.identity.Clone()
	m.mu.Unlock()

	m.persistIdentity(ctx, snapshot)
	m.notify(models.NotifyIdentityChanged, snapshot)
	return true
}

func (m *Manager) persistIdentity(ctx context.Context, id *models.Identity) {
	if id == nil || id.UserID == 0 {
		return
	}
	if err := m.store.SaveIdentity(context.WithoutCancel(ctx), id); err != nil {
		m.logger.Warn().Err(err).Int64("user_id", id.UserID).Msg("Failed to persist identity")
	}
}

// restoreIdentity adopts the single stored identity so the device id is
// known before /me.json answers.
func (m *Manager) restoreIdentity(ctx context.Context) {
	ids, err := m.store.Identities(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load identities")
		return
	}
	if len(ids) != 1 {
		return
	}
	m.mu.Lock()
	m.identity = ids[0]
	m.mu.Unlock()
	m.client.SetDeviceID(ids[0].DeviceID)
}

// Link installs credentials obtained from the OAuth handshake and opens
// the session. Identity, device and configuration are retrieved in the
// background.
func (m *Manager) Link(ctx context.Context, creds models.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("link requires a token and a secret")
	}
	if err := m.store.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	m.resetLinkScope()
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
	m.client.SetCredentials(creds)

	m.logger.Info().Msg("Account linked")
	m.setConnected(true, true)
	return nil
}

// Delink forgets the linked account. In-flight requests are cancelled, the
// sync and listen buffers are discarded, and the identity's server fields
// are reset.
func (m *Manager) Delink(ctx context.Context) error {
	m.resetLinkScope()
	m.flushDebounce.Cancel()
	m.buffer.swap()
	m.listens.reset(ctx)
	m.clearPendingUploads()

	m.mu.Lock()
	id := m.identity
	m.identity = nil
	m.creds = models.Credentials{}
	m.mu.Unlock()

	if id != nil {
		id.Reset()
		m.persistIdentity(ctx, id)
	}

	m.client.SetCredentials(models.Credentials{})
	m.client.SetDeviceID(0)
	m.client.SetSessionID("")

	var errs []error
	if err := m.store.ClearCredentials(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, fmt.Errorf("clear credentials: %w", err))
	}

	m.logger.Info().Msg("Account delinked")
	m.notify(models.NotifyIdentityChanged, nil)
	return errors.Join(errs...)
}

// SyncFlags is a partial change of the identity's sync toggles.
type SyncFlags struct {
	Synchronize          *bool `json:"synchronize,omitempty"`
	SynchronizeConfig    *bool `json:"synchronize_config,omitempty"`
	SynchronizePlaylists *bool `json:"synchronize_playlists,omitempty"`
	SynchronizeQueue     *bool `json:"synchronize_queue,omitempty"`
	SynchronizeFiles     *bool `json:"synchronize_files,omitempty"`
}

// SetSyncFlags updates the toggles. A toggle whose effective value turns
// on triggers the matching sync immediately.
func (m *Manager) SetSyncFlags(ctx context.Context, flags SyncFlags) error {
	var configOn, playlistsOn bool
	ok := m.updateIdentity(ctx, func(id *models.Identity) {
		prevConfig, prevPlaylists := id.SyncConfig(), id.SyncPlaylists()
		set := func(dst *bool, v *bool) {
			if v != nil {
				*dst = *v
			}
		}
		set(&id.Synchronize, flags.Synchronize)
		set(&id.SynchronizeConfig, flags.SynchronizeConfig)
		set(&id.SynchronizePlaylists, flags.SynchronizePlaylists)
		set(&id.SynchronizeQueue, flags.SynchronizeQueue)
		set(&id.SynchronizeFiles, flags.SynchronizeFiles)
		configOn = !prevConfig && id.SyncConfig()
		playlistsOn = !prevPlaylists && id.SyncPlaylists()
	})
	if !ok {
		return ErrNotLinked
	}

	if configOn {
		m.submit(m.sessionQ, "sync-config", func(ctx context.Context) {
			if err := m.SyncConfig(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("Configuration sync failed")
			}
		})
	}
	if playlistsOn {
		m.submit(m.sessionQ, "sync-playlists", func(ctx context.Context) {
			if err := m.SyncPlaylists(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("Playlist sync failed")
			}
		})
	}
	return nil
}
