// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// OnUpdated applies a server-side update of one object.
func (m *Manager) OnUpdated(ctx context.Context, objectType string, id int64, fields map[string]any) error {
	metrics.ReconcilerEvents.WithLabelValues(models.EventUpdate, objectType).Inc()
	switch objectType {
	case "devices":
		return m.deviceUpdated(ctx, id, fields)
	case "configurations":
		return m.configurationUpdated(id, fields)
	case "links":
		return m.linkUpserted(ctx, id, fields)
	case "playlists":
		return m.playlistUpdated(id, fields)
	}
	return nil
}

// OnCreated applies a server-side create.
func (m *Manager) OnCreated(ctx context.Context, objectType string, id int64, fields map[string]any) error {
	metrics.ReconcilerEvents.WithLabelValues(models.EventCreate, objectType).Inc()
	switch objectType {
	case "links":
		return m.linkUpserted(ctx, id, fields)
	case "playlists":
		if !m.syncingPlaylists() {
			return nil
		}
		r, err := remotePlaylist(id, fields)
		if err != nil {
			return err
		}
		if err := m.mergePlaylist(r); err != nil {
			return err
		}
		m.notify(models.NotifyPlaylistsChanged, nil)
	}
	return nil
}

// OnDeleted applies a server-side delete.
func (m *Manager) OnDeleted(ctx context.Context, objectType string, id int64) error {
	metrics.ReconcilerEvents.WithLabelValues(models.EventDelete, objectType).Inc()
	switch objectType {
	case "devices":
		if id != 0 && id == m.deviceID() {
			m.logger.Warn().Int64("device_id", id).Msg("This device was removed remotely; delinking")
			return m.Delink(ctx)
		}
	case "links":
		removed := false
		m.updateIdentity(ctx, func(ident *models.Identity) { removed = ident.RemoveLink(id) })
		if removed {
			m.notify(models.NotifyLinksChanged, m.linksSnapshot())
		}
	case "playlists":
		if !m.syncingPlaylists() {
			return nil
		}
		p, ok := m.library.PlaylistByID(id)
		if !ok {
			return nil
		}
		m.buffer.dropRef(p.Name)
		m.clearPending(id, p.Tracks)
		if _, err := m.library.DeletePlaylist(p.Name); err != nil {
			return err
		}
		m.notify(models.NotifyPlaylistsChanged, nil)
	}
	return nil
}

func (m *Manager) deviceUpdated(ctx context.Context, id int64, fields map[string]any) error {
	if id == 0 || id != m.deviceID() {
		return nil
	}
	raw, ok := fields["configuration_id"]
	if !ok {
		return nil
	}
	cfgID, err := asInt64(raw)
	if err != nil {
		return fmt.Errorf("device configuration_id: %w", err)
	}
	changed := false
	m.updateIdentity(ctx, func(ident *models.Identity) {
		changed = ident.ConfigurationID != cfgID
		ident.ConfigurationID = cfgID
	})
	if changed {
		if ident := m.Identity(); ident != nil && ident.SyncConfig() {
			m.submit(m.sessionQ, "sync-config", func(ctx context.Context) {
				if err := m.SyncConfig(ctx); err != nil {
					m.logger.Warn().Err(err).Msg("Configuration sync failed")
				}
			})
		}
	}
	return nil
}

func (m *Manager) configurationUpdated(id int64, fields map[string]any) error {
	ident := m.Identity()
	if ident == nil || id == 0 || id != ident.ConfigurationID || !ident.SyncConfig() {
		return nil
	}
	m.syncProfileUpdated(fields)
	return nil
}

// syncProfileUpdated applies a remote configuration change to the player.
func (m *Manager) syncProfileUpdated(fields map[string]any) {
	m.applyRemoteProfile(fields)
}

// applyRemoteProfile writes remote settings to the player without echoing
// them back. A field that fails to apply is logged and skipped.
func (m *Manager) applyRemoteProfile(fields map[string]any) {
	m.applyingRemote.Store(true)
	defer m.applyingRemote.Store(false)

	if v, ok := fields["shuffle"]; ok {
		m.safeApply("shuffle", func() error {
			b, err := asBool(v)
			if err != nil {
				return err
			}
			m.player.SetShuffle(b)
			return nil
		})
	}
	if v, ok := fields["repeat"]; ok {
		m.safeApply("repeat", func() error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			mode, ok := models.ParseRepeatMode(s)
			if !ok {
				return fmt.Errorf("unknown repeat mode %q", s)
			}
			m.player.SetRepeat(mode)
			return nil
		})
	}
	if v, ok := fields["volume"]; ok {
		m.safeApply("volume", func() error {
			f, err := asFloat(v)
			if err != nil {
				return err
			}
			m.player.SetVolume(f)
			return nil
		})
	}
	if v, ok := fields["current_track"]; ok && v != nil {
		m.safeApply("current_track", func() error {
			path, err := trackPath(v)
			if err != nil {
				return err
			}
			if path != "" {
				m.player.SetCurrentTrack(path)
			}
			return nil
		})
	}

	m.notify(models.NotifyConfigurationChanged, m.player.Settings())
}

// safeApply runs one field update, containing errors and panics to it.
func (m *Manager) safeApply(field string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("field", field).Interface("panic", r).Msg("Applying remote setting panicked")
		}
	}()
	if err := fn(); err != nil {
		m.logger.Warn().Err(err).Str("field", field).Msg("Ignoring remote setting")
	}
}

func trackPath(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case map[string]any:
		return asString(t["path"])
	}
	return "", fmt.Errorf("unexpected current_track %T", v)
}

// configFields lists the settings pushed to the configuration.
var configFields = map[string]struct{}{
	"shuffle":       {},
	"repeat":        {},
	"volume":        {},
	"current_track": {},
	"media_state":   {},
}

// ConfigChanged pushes a local player setting to the attached
// configuration. Changes caused by applying a remote profile are ignored.
func (m *Manager) ConfigChanged(field string, value any) error {
	if _, ok := configFields[field]; !ok {
		return fmt.Errorf("unknown configuration field %q", field)
	}
	if m.applyingRemote.Load() {
		return nil
	}
	ident := m.Identity()
	if ident == nil || !ident.SyncConfig() || ident.ConfigurationID == 0 {
		return nil
	}

	switch v := value.(type) {
	case models.RepeatMode:
		value = v.String()
	case models.MediaState:
		value = string(v)
	}
	if field == "current_track" {
		if path, ok := value.(string); ok {
			value = map[string]any{"path": path}
		}
	}

	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "configurations",
		ObjectID:   ident.ConfigurationID,
		Params:     map[string]any{field: value},
	})
}

// linkUpserted merges a link payload into the identity. Links are matched
// by id, then by provider among connected links, and otherwise added.
func (m *Manager) linkUpserted(ctx context.Context, id int64, fields map[string]any) error {
	ok := m.updateIdentity(ctx, func(ident *models.Identity) {
		var target *models.Link
		if id != 0 {
			target = ident.LinkByID(id)
		}
		if target == nil {
			provider, _ := asString(fields["provider"])
			if provider != "" {
				target = ident.LinkByProvider(provider, true)
			}
		}
		var l models.Link
		if target != nil {
			l = target.Clone()
		}
		if id != 0 {
			l.ID = id
		}
		m.applyLinkFields(&l, fields)
		if target != nil {
			*target = l
			return
		}
		ident.UpsertLink(l)
	})
	if !ok {
		return nil
	}
	m.notify(models.NotifyLinksChanged, m.linksSnapshot())
	return nil
}

// applyLinkFields copies known fields from a decoded payload onto l.
// A link that turns disconnected loses every capability and consent.
func (m *Manager) applyLinkFields(l *models.Link, fields map[string]any) {
	setBool := func(key string, dst *bool) {
		if v, ok := fields[key]; ok {
			if b, err := asBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := fields[key]; ok {
			if s, err := asString(v); err == nil {
				*dst = s
			}
		}
	}

	if v, ok := fields["id"]; ok {
		if id, err := asInt64(v); err == nil && id != 0 {
			l.ID = id
		}
	}
	setString("provider", &l.Provider)
	setString("url", &l.URL)
	setString("connect_url", &l.ConnectURL)
	setBool("connected", &l.Connected)
	setBool("can_share", &l.CanShare)
	setBool("do_share", &l.DoShare)
	setBool("can_listen", &l.CanListen)
	setBool("do_listen", &l.DoListen)
	setBool("can_donate", &l.CanDonate)
	setBool("do_donate", &l.DoDonate)
	setBool("can_create_playlist", &l.CanCreatePlaylist)
	setBool("do_create_playlist", &l.DoCreatePlaylist)
	if v, ok := fields["error"]; ok {
		if s, err := asString(v); err == nil && s != "" {
			l.Error = &s
		} else {
			l.Error = nil
		}
	}
	if !l.Connected {
		l.Disconnect()
	}
}

func (m *Manager) linksSnapshot() []models.Link {
	ident := m.Identity()
	if ident == nil {
		return nil
	}
	return ident.Links
}

func (m *Manager) playlistUpdated(id int64, fields map[string]any) error {
	if !m.syncingPlaylists() {
		return nil
	}
	if _, full := fields["songs"]; full {
		r, err := remotePlaylist(id, fields)
		if err != nil {
			return err
		}
		if err := m.mergePlaylist(r); err != nil {
			return err
		}
		m.notify(models.NotifyPlaylistsChanged, nil)
		return nil
	}

	p, ok := m.library.PlaylistByID(id)
	if !ok {
		return nil
	}
	if v, ok := fields["name"]; ok {
		if name, err := asString(v); err == nil && name != "" && name != p.Name {
			if err := m.library.RenamePlaylist(p.Name, name); err != nil {
				return err
			}
			p.Name = name
		}
	}
	if v, ok := fields["filter"]; ok {
		if filter, err := asString(v); err == nil {
			if err := m.library.SetFilter(p.Name, filter); err != nil {
				return err
			}
		}
	}
	m.notify(models.NotifyPlaylistsChanged, nil)
	return nil
}

// remotePlaylist decodes a playlist payload. The event id wins over the
// payload's.
func remotePlaylist(id int64, fields map[string]any) (models.RemotePlaylist, error) {
	var r models.RemotePlaylist
	raw, err := json.Marshal(fields)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode playlist: %w", err)
	}
	if id != 0 {
		r.ID = id
	}
	return r, nil
}
