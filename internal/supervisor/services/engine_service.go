// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package services

import (
	"context"
	"fmt"
)

// StartStopper matches the sync engine lifecycle. Satisfied by *cloud.Manager.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// EngineService adapts the engine's Start/Stop lifecycle to suture:
//  1. Start(ctx) loads persisted state and starts the workers
//  2. Serve blocks until ctx is cancelled
//  3. Stop() flushes, cancels every scope and waits for the workers
//
// A Start failure is returned so suture restarts the service with backoff.
type EngineService struct {
	engine StartStopper
	name   string
}

// NewEngineService wraps engine.
func NewEngineService(engine StartStopper) *EngineService {
	return &EngineService{engine: engine, name: "sync-engine"}
}

// Serve implements suture.Service.
func (s *EngineService) Serve(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("sync engine start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.engine.Stop(); err != nil {
		return fmt.Errorf("sync engine stop failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *EngineService) String() string {
	return s.name
}
