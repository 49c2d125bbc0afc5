// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/cadence/internal/models"
)

// OnCommand executes a command pushed by the service.
func (m *Manager) OnCommand(ctx context.Context, command, objectType string, id int64) error {
	return m.ExecuteCommand(ctx, command, objectType, id)
}

// ExecuteCommand runs a remote command. Player commands are accepted only
// when addressed to this device's configuration.
func (m *Manager) ExecuteCommand(ctx context.Context, command, objectType string, id int64) error {
	cmd := strings.ToLower(strings.TrimSpace(command))

	switch cmd {
	case "next", "prev", "previous", "play", "pause", "play-pause", "playpause", "play_pause":
		ident := m.Identity()
		if ident == nil {
			return ErrNotLinked
		}
		if objectType != "configurations" || id == 0 || id != ident.ConfigurationID {
			m.logger.Debug().Str("command", cmd).Str("object_type", objectType).Int64("object_id", id).Msg("Ignoring command for another configuration")
			return ErrForeignCommand
		}
		switch cmd {
		case "next":
			m.player.Next()
		case "prev", "previous":
			m.player.Previous()
		case "play":
			m.player.Play()
		case "pause":
			m.player.Pause()
		default:
			m.player.PlayPause()
		}
		m.logger.Info().Str("command", cmd).Msg("Executed remote player command")
		return nil

	case "follow":
		if objectType != "" && objectType != "playlists" {
			return fmt.Errorf("%w: follow %s", ErrUnknownCommand, objectType)
		}
		return m.followAndMerge(ctx, id)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}

// followAndMerge follows a playlist and pulls it into the library.
func (m *Manager) followAndMerge(ctx context.Context, id int64) error {
	if id == 0 {
		return fmt.Errorf("follow: playlist id is required")
	}
	if err := m.follow(ctx, id); err != nil {
		return fmt.Errorf("follow playlist %d: %w", id, err)
	}
	res, err := m.send(ctx, transportGet(resourcePath("playlists", id)))
	if err != nil {
		return fmt.Errorf("fetch playlist %d: %w", id, err)
	}
	var r models.RemotePlaylist
	if err := res.Decode(&r); err != nil {
		return fmt.Errorf("decode playlist %d: %w", id, err)
	}
	if r.ID == 0 {
		r.ID = id
	}
	if err := m.mergePlaylist(r); err != nil {
		return err
	}
	m.notify(models.NotifyPlaylistsChanged, nil)
	return nil
}
