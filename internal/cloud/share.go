// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/transport"
)

// Share publishes an object to every connected link the user allows to share.
func (m *Manager) Share(ctx context.Context, objectType string, id int64, message string) error {
	ident := m.Identity()
	if ident == nil {
		return ErrNotLinked
	}
	var providers []string
	for _, l := range ident.Links {
		if l.Connected && l.CanShare && l.DoShare {
			providers = append(providers, l.Provider)
		}
	}
	if len(providers) == 0 {
		return ErrNoShareTargets
	}

	req := models.ShareRequest{
		ObjectType: objectType,
		ObjectID:   id,
		Message:    message,
		Providers:  providers,
	}
	if _, err := m.send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/shares.json",
		Body:   map[string]any{"share": req},
		Expect: []int{http.StatusCreated, http.StatusOK},
	}); err != nil {
		return fmt.Errorf("share %s %d: %w", objectType, id, err)
	}
	m.logger.Info().Str("object_type", objectType).Int64("object_id", id).Strs("providers", providers).Msg("Shared")
	return nil
}

// SetLinkConsent changes the user's consent on the connected link for
// provider and pushes it.
func (m *Manager) SetLinkConsent(ctx context.Context, provider string, consent models.LinkConsent) error {
	var (
		found  bool
		linkID int64
		params map[string]any
	)
	ok := m.updateIdentity(ctx, func(ident *models.Identity) {
		l := ident.LinkByProvider(provider, true)
		if l == nil {
			return
		}
		found = true
		linkID = l.ID
		params = consent.Apply(l)
	})
	if !ok {
		return ErrNotLinked
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, provider)
	}

	m.notify(models.NotifyLinksChanged, m.linksSnapshot())
	if len(params) == 0 || linkID == 0 {
		return nil
	}
	return m.Enqueue(models.SyncOperation{
		Command:    models.CommandUpdate,
		ObjectType: "links",
		ObjectID:   linkID,
		Params:     params,
	})
}

// LinkError records a provider communication error on a link. An empty
// message clears it.
func (m *Manager) LinkError(ctx context.Context, linkID int64, message string) error {
	found := false
	ok := m.updateIdentity(ctx, func(ident *models.Identity) {
		l := ident.LinkByID(linkID)
		if l == nil {
			return
		}
		found = true
		if message == "" {
			l.Error = nil
			return
		}
		msg := message
		l.Error = &msg
	})
	if !ok {
		return ErrNotLinked
	}
	if !found {
		return fmt.Errorf("%w: id %d", ErrLinkNotFound, linkID)
	}
	m.logger.Warn().Int64("link_id", linkID).Str("error", message).Msg("Link reported an error")
	m.notify(models.NotifyLinkError, map[string]any{"id": linkID, "message": message})
	return nil
}
