// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

// Identity is the linked cloud account on this device.
//
// DeviceID and ConfigurationID are populated asynchronously by registration.
// Synchronize=false suppresses every sub-toggle regardless of its own value;
// use the Sync* accessors rather than reading the fields directly.
type Identity struct {
	UserID          int64 `json:"user_id"`
	DeviceID        int64 `json:"device_id"`
	ConfigurationID int64 `json:"configuration_id"`

	Synchronize          bool `json:"synchronize"`
	SynchronizeConfig    bool `json:"synchronize_config"`
	SynchronizePlaylists bool `json:"synchronize_playlists"`
	SynchronizeQueue     bool `json:"synchronize_queue"`
	SynchronizeFiles     bool `json:"synchronize_files"`

	Links []Link `json:"links"`
}

// NewIdentity returns an identity for userID with synchronization enabled.
func NewIdentity(userID int64) *Identity {
	return &Identity{
		UserID:               userID,
		Synchronize:          true,
		SynchronizeConfig:    true,
		SynchronizePlaylists: true,
		SynchronizeQueue:     true,
		SynchronizeFiles:     true,
	}
}

// SyncConfig reports whether configuration sync is effectively on.
func (i *Identity) SyncConfig() bool { return i.Synchronize && i.SynchronizeConfig }

// SyncPlaylists reports whether playlist sync is effectively on.
func (i *Identity) SyncPlaylists() bool { return i.Synchronize && i.SynchronizePlaylists }

// SyncQueue reports whether queue sync is effectively on.
func (i *Identity) SyncQueue() bool { return i.Synchronize && i.SynchronizeQueue }

// SyncFiles reports whether file sync is effectively on.
func (i *Identity) SyncFiles() bool { return i.Synchronize && i.SynchronizeFiles }

// Reset clears everything assigned by the server. The identity object itself survives a delink.
func (i *Identity) Reset() {
	i.DeviceID = 0
	i.ConfigurationID = 0
	i.Links = nil
}

// Clone returns a deep copy safe to hand to other goroutines.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Links != nil {
		c.Links = make([]Link, len(i.Links))
		for n := range i.Links {
			c.Links[n] = i.Links[n].Clone()
		}
	}
	return &c
}

// LinkByID returns the link with the given remote id, or nil.
func (i *Identity) LinkByID(id int64) *Link {
	if id == 0 {
		return nil
	}
	for n := range i.Links {
		if i.Links[n].ID == id {
			return &i.Links[n]
		}
	}
	return nil
}

// LinkByProvider returns the link for provider whose Connected flag matches, or nil.
func (i *Identity) LinkByProvider(provider string, connected bool) *Link {
	for n := range i.Links {
		if i.Links[n].Provider == provider && i.Links[n].Connected == connected {
			return &i.Links[n]
		}
	}
	return nil
}

// UpsertLink adds l, replacing any connected link for the same provider.
// Connected links are unique by provider.
func (i *Identity) UpsertLink(l Link) *Link {
	if existing := i.LinkByID(l.ID); existing != nil {
		*existing = l
		return existing
	}
	if l.Connected {
		if existing := i.LinkByProvider(l.Provider, true); existing != nil {
			*existing = l
			return existing
		}
	}
	i.Links = append(i.Links, l)
	return &i.Links[len(i.Links)-1]
}

// RemoveLink drops the link with the given id and reports whether one was removed.
func (i *Identity) RemoveLink(id int64) bool {
	for n := range i.Links {
		if i.Links[n].ID == id {
			i.Links = append(i.Links[:n], i.Links[n+1:]...)
			return true
		}
	}
	return false
}

// Link is a connection between the account and a third-party provider.
//
// Can* fields are declared by the server and authoritative for connected links.
// Do* fields are the user's consent; they are mutated locally and pushed.
type Link struct {
	ID         int64  `json:"id"`
	Provider   string `json:"provider"`
	Connected  bool   `json:"connected"`
	URL        string `json:"url,omitempty"`
	ConnectURL string `json:"connect_url,omitempty"`

	CanShare          bool `json:"can_share"`
	DoShare           bool `json:"do_share"`
	CanListen         bool `json:"can_listen"`
	DoListen          bool `json:"do_listen"`
	CanDonate         bool `json:"can_donate"`
	DoDonate          bool `json:"do_donate"`
	CanCreatePlaylist bool `json:"can_create_playlist"`
	DoCreatePlaylist  bool `json:"do_create_playlist"`

	// Error is the last communication error reported for this link. Nil means healthy.
	Error *string `json:"error,omitempty"`
}

// Disconnect marks the link disconnected and clears every capability and consent.
func (l *Link) Disconnect() {
	l.Connected = false
	l.CanShare, l.DoShare = false, false
	l.CanListen, l.DoListen = false, false
	l.CanDonate, l.DoDonate = false, false
	l.CanCreatePlaylist, l.DoCreatePlaylist = false, false
}

// Clone returns a copy with its own Error pointer.
func (l Link) Clone() Link {
	if l.Error != nil {
		e := *l.Error
		l.Error = &e
	}
	return l
}

// LinkConsent carries a partial consent change. Nil fields are left unchanged.
type LinkConsent struct {
	Share          *bool `json:"do_share,omitempty"`
	Listen         *bool `json:"do_listen,omitempty"`
	Donate         *bool `json:"do_donate,omitempty"`
	CreatePlaylist *bool `json:"do_create_playlist,omitempty"`
}

// Apply writes the set fields to l and returns the pushed parameter map.
func (c LinkConsent) Apply(l *Link) map[string]any {
	params := make(map[string]any, 4)
	if c.Share != nil {
		l.DoShare = *c.Share
		params["do_share"] = *c.Share
	}
	if c.Listen != nil {
		l.DoListen = *c.Listen
		params["do_listen"] = *c.Listen
	}
	if c.Donate != nil {
		l.DoDonate = *c.Donate
		params["do_donate"] = *c.Donate
	}
	if c.CreatePlaylist != nil {
		l.DoCreatePlaylist = *c.CreatePlaylist
		params["do_create_playlist"] = *c.CreatePlaylist
	}
	return params
}

// Credentials are the per-user OAuth token pair obtained when linking.
type Credentials struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

// Valid reports whether both halves are present.
func (c Credentials) Valid() bool { return c.Token != "" && c.Secret != "" }

// User is the /me.json payload.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
