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
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/store"
	"github.com/tomtom215/cadence/internal/transport"
)

// RetrieveIdentity fetches /me.json, adopts the matching identity, registers
// the device, and then schedules link retrieval and the enabled syncs.
func (m *Manager) RetrieveIdentity(ctx context.Context) error {
	res, err := m.send(ctx, transport.Request{Method: http.MethodGet, Path: "/me.json"})
	if err != nil {
		if transport.IsKind(err, transport.Unauthorized) {
			m.logger.Warn().Msg("Credentials rejected; delinking")
			if derr := m.Delink(context.WithoutCancel(ctx)); derr != nil {
				m.logger.Warn().Err(derr).Msg("Delink failed")
			}
		}
		return fmt.Errorf("retrieve identity: %w", err)
	}

	var user models.User
	if err := res.Decode(&user); err != nil {
		return fmt.Errorf("decode /me.json: %w", err)
	}
	if user.ID == 0 {
		return fmt.Errorf("decode /me.json: %w", &transport.Error{Kind: transport.Malformed, Op: "GET /me.json", Status: res.Status, Err: errors.New("missing user id")})
	}

	m.adoptIdentity(ctx, user.ID)

	m.initMu.Lock()
	err = m.registerDevice(ctx, 0)
	m.initMu.Unlock()
	if err != nil {
		return err
	}

	m.submit(m.sessionQ, "retrieve-links", func(ctx context.Context) {
		if err := m.RetrieveLinks(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Link retrieval failed")
		}
	})

	id := m.Identity()
	if id == nil {
		return ErrNotLinked
	}
	if id.SyncConfig() {
		m.submit(m.sessionQ, "sync-config", func(ctx context.Context) {
			if err := m.SyncConfig(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("Configuration sync failed")
			}
		})
	}
	if id.SyncPlaylists() {
		m.submit(m.sessionQ, "sync-playlists", func(ctx context.Context) {
			if err := m.SyncPlaylists(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("Playlist sync failed")
			}
		})
	}
	return nil
}

// adoptIdentity makes the identity for userID current, loading it from the
// store or creating it.
func (m *Manager) adoptIdentity(ctx context.Context, userID int64) {
	m.mu.RLock()
	current := m.identity
	m.mu.RUnlock()
	if current != nil && current.UserID == userID {
		return
	}

	id, err := m.store.Identity(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to load identity")
		}
		id = models.NewIdentity(userID)
	}

	m.mu.Lock()
	m.identity = id
	m.mu.Unlock()

	m.client.SetDeviceID(id.DeviceID)
	m.persistIdentity(ctx, id)
	m.notify(models.NotifyIdentityChanged, id.Clone())
	m.logger.Info().Int64("user_id", userID).Int64("device_id", id.DeviceID).Msg("Identity retrieved")
}

// registerDevice verifies the known device or registers a new one. A known
// device the service no longer has is re-registered, at most
// device.max_registration_attempts times.
func (m *Manager) registerDevice(ctx context.Context, attempt int) error {
	if attempt >= m.cfg.Device.MaxRegistrationAttempts {
		return ErrRegistrationFailed
	}

	if id := m.deviceID(); id != 0 {
		res, err := m.send(ctx, transport.Request{Method: http.MethodGet, Path: resourcePath("devices", id)})
		switch {
		case err == nil:
			var dev models.Device
			if derr := res.Decode(&dev); derr == nil && dev.ConfigurationID != 0 {
				m.updateIdentity(ctx, func(ident *models.Identity) {
					if ident.ConfigurationID == 0 {
						ident.ConfigurationID = dev.ConfigurationID
					}
				})
			}
			return nil
		case transport.IsKind(err, transport.NotFound):
			m.logger.Warn().Int64("device_id", id).Msg("Device unknown to the service; re-registering")
			m.setDevice(ctx, 0)
			return m.registerDevice(ctx, attempt+1)
		default:
			return fmt.Errorf("verify device %d: %w", id, err)
		}
	}

	q := url.Values{}
	q.Set("device[name]", m.cfg.Device.Name)
	if m.cfg.Device.Version != "" {
		q.Set("device[version]", m.cfg.Device.Version)
	}
	res, err := m.send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/devices.json",
		Query:  q,
		Expect: []int{http.StatusCreated},
	})
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	var dev models.Device
	if err := res.Decode(&dev); err != nil {
		return fmt.Errorf("decode device: %w", err)
	}
	if dev.ID == 0 {
		return m.registerDevice(ctx, attempt+1)
	}
	m.setDevice(ctx, dev.ID)
	m.logger.Info().Int64("device_id", dev.ID).Msg("Device registered")
	return nil
}

func (m *Manager) setDevice(ctx context.Context, id int64) {
	m.updateIdentity(ctx, func(ident *models.Identity) { ident.DeviceID = id })
	m.client.SetDeviceID(id)
}

// waitForDevice polls for a device id with bounded sleep and gives up after
// device.wait_timeout.
func (m *Manager) waitForDevice(ctx context.Context) (int64, error) {
	if id := m.deviceID(); id != 0 {
		return id, nil
	}
	deadline := time.NewTimer(m.cfg.Device.WaitTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(m.cfg.Device.WaitStep)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline.C:
			return 0, ErrDeviceWaitTimeout
		case <-tick.C:
			if id := m.deviceID(); id != 0 {
				return id, nil
			}
		}
	}
}

// RetrieveLinks replaces the identity's links with the service's list.
// It waits for device registration first.
func (m *Manager) RetrieveLinks(ctx context.Context) error {
	if _, err := m.waitForDevice(ctx); err != nil {
		return fmt.Errorf("retrieve links: %w", err)
	}
	m.initMu.Lock()
	defer m.initMu.Unlock()

	res, err := m.send(ctx, transport.Request{Method: http.MethodGet, Path: "/links.json"})
	if err != nil {
		return fmt.Errorf("retrieve links: %w", err)
	}
	var raw []map[string]any
	if err := res.Decode(&raw); err != nil {
		return fmt.Errorf("decode links: %w", err)
	}

	ok := m.updateIdentity(ctx, func(id *models.Identity) {
		links := make([]models.Link, 0, len(raw))
		for _, fields := range raw {
			var l models.Link
			m.applyLinkFields(&l, fields)
			links = append(links, l)
		}
		id.Links = nil
		for _, l := range links {
			id.UpsertLink(l)
		}
	})
	if !ok {
		return ErrNotLinked
	}
	m.notify(models.NotifyLinksChanged, m.linksSnapshot())
	return nil
}

// SyncConfig attaches the device to a remote configuration, creating
// "Default" when the account has none, and applies the remote profile.
func (m *Manager) SyncConfig(ctx context.Context) error {
	deviceID, err := m.waitForDevice(ctx)
	if err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	res, err := m.send(ctx, transport.Request{Method: http.MethodGet, Path: "/configurations.json"})
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	var configs []models.Configuration
	if err := res.Decode(&configs); err != nil {
		return fmt.Errorf("decode configurations: %w", err)
	}

	current := m.Identity()
	if current == nil {
		return ErrNotLinked
	}

	var chosen *models.Configuration
	for i := range configs {
		if configs[i].ID == current.ConfigurationID {
			chosen = &configs[i]
			break
		}
	}
	if chosen == nil && len(configs) > 0 {
		chosen = &configs[0]
	}

	if chosen == nil {
		created, err := m.createDefaultConfig(ctx)
		if err != nil {
			return err
		}
		chosen = created
	} else {
		m.applyRemoteProfile(configToFields(*chosen))
	}

	if current.ConfigurationID != chosen.ID {
		m.updateIdentity(ctx, func(id *models.Identity) { id.ConfigurationID = chosen.ID })
		q := url.Values{}
		q.Set("device[configuration_id]", strconv.FormatInt(chosen.ID, 10))
		if _, err := m.send(ctx, transport.Request{
			Method: http.MethodPut,
			Path:   resourcePath("devices", deviceID),
			Query:  q,
			Expect: []int{http.StatusOK, http.StatusNoContent},
		}); err != nil {
			return fmt.Errorf("attach configuration: %w", err)
		}
	}
	m.logger.Info().Int64("configuration_id", chosen.ID).Msg("Configuration synchronized")
	return nil
}

func (m *Manager) createDefaultConfig(ctx context.Context) (*models.Configuration, error) {
	s := m.player.Settings()
	q := url.Values{}
	q.Set("configuration[name]", "Default")
	q.Set("configuration[shuffle]", strconv.FormatBool(s.Shuffle))
	q.Set("configuration[repeat]", s.Repeat.String())
	q.Set("configuration[volume]", strconv.FormatFloat(s.Volume, 'f', -1, 64))

	res, err := m.send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/configurations.json",
		Query:  q,
		Expect: []int{http.StatusCreated},
	})
	if err != nil {
		return nil, fmt.Errorf("create default configuration: %w", err)
	}
	var cfg models.Configuration
	if err := res.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if cfg.ID == 0 {
		return nil, fmt.Errorf("create default configuration: %w", &transport.Error{Kind: transport.Malformed, Status: res.Status, Err: errors.New("missing id")})
	}
	m.logger.Info().Int64("configuration_id", cfg.ID).Msg("Created default configuration")
	return &cfg, nil
}

func configToFields(c models.Configuration) map[string]any {
	f := map[string]any{
		"shuffle": c.Shuffle,
		"volume":  c.Volume,
	}
	if c.Repeat != "" {
		f["repeat"] = c.Repeat
	}
	if c.CurrentTrack != nil && c.CurrentTrack.Path != "" {
		f["current_track"] = map[string]any{"path": c.CurrentTrack.Path}
	}
	return f
}
