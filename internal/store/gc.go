// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package store

import (
	"context"
	"time"

	"github.com/tomtom215/cadence/internal/logging"
)

// GCService runs value log garbage collection periodically.
// It implements suture.Service.
type GCService struct {
	store    *Store
	interval time.Duration
}

// NewGCService returns a service collecting every interval (10 minutes if zero).
func NewGCService(s *Store, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{store: s, interval: interval}
}

// Serve blocks until ctx is done.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("State store GC failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (g *GCService) String() string { return "store-gc" }
