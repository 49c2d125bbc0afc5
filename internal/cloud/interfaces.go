// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"

	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/transport"
)

// Transport sends requests to the service. Implemented by *transport.Client.
type Transport interface {
	Send(ctx context.Context, r transport.Request) (*transport.Result, error)
	Ping(ctx context.Context, target string) error
	Domain() string
	SetCredentials(creds models.Credentials)
	SetDeviceID(id int64)
	SetSessionID(id string)
	SessionID() string
}

// StateStore persists what must survive a restart. Implemented by *store.Store.
type StateStore interface {
	SaveCredentials(ctx context.Context, creds models.Credentials) error
	Credentials(ctx context.Context) (models.Credentials, error)
	ClearCredentials(ctx context.Context) error
	SaveIdentity(ctx context.Context, id *models.Identity) error
	Identity(ctx context.Context, userID int64) (*models.Identity, error)
	Identities(ctx context.Context) ([]*models.Identity, error)
	PutListen(ctx context.Context, key string, req models.ListenRequest) error
	DeleteListen(ctx context.Context, key string) error
	ListenBuffer(ctx context.Context) (map[string]models.ListenRequest, error)
	ClearListenBuffer(ctx context.Context) error
}

// Library is the local playlist collection. Implemented by *library.Library.
type Library interface {
	Playlists() []models.Playlist
	PlaylistByID(id int64) (models.Playlist, bool)
	PlaylistByName(name string) (models.Playlist, bool)
	CreatePlaylist(p models.Playlist) (models.Playlist, error)
	SetPlaylistRemote(name string, id, ownerID int64) error
	SetFilter(name, filter string) error
	RenamePlaylist(oldName, newName string) error
	AddTracks(name string, paths []string) error
	RemoveTracks(name string, paths []string) error
	DeletePlaylist(name string) (models.Playlist, error)
	Track(path string) models.Track
}

// Player is the local playback surface. Implemented by *library.Player.
type Player interface {
	Next()
	Previous()
	Play()
	Pause()
	PlayPause()
	Settings() models.PlayerSettings
	SetShuffle(v bool)
	SetRepeat(m models.RepeatMode)
	SetVolume(v float64)
	SetCurrentTrack(path string)
}

// Notifier receives UI notifications. Implemented by *websocket.Hub.
type Notifier interface {
	Notify(kind string, data any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, any) {}
