// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package main is the entry point for the Cadence sync daemon.
//
// Cadence runs beside a desktop music player and keeps its playlists,
// settings and listening history in sync with the cloud service. The player
// talks to it over the local control API; the service pushes changes over
// the realtime channel.
//
// # Startup Order
//
//  1. Configuration: defaults, cadence.yaml, CADENCE_* environment (Koanf v2)
//  2. Logging: zerolog, with a slog bridge for the supervisor
//  3. State store: BadgerDB with credentials, identities and the listen buffer
//  4. Transport: OAuth-signed HTTP client with breaker and pacing
//  5. Library, player and notification hub
//  6. Sync engine, realtime client and control API under a suture tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the tree. The engine flushes what it can,
// the HTTP server drains for the configured shutdown timeout and the store
// is closed last.
//
// # Example Usage
//
//	export CADENCE_OAUTH_CONSUMER_KEY=key
//	export CADENCE_OAUTH_CONSUMER_SECRET=secret
//	export CADENCE_SERVICE_REALTIME_URL=wss://push.stoffi.io/socket
//	./cadence
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cadence/internal/api"
	"github.com/tomtom215/cadence/internal/cloud"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/library"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/realtime"
	"github.com/tomtom215/cadence/internal/store"
	"github.com/tomtom215/cadence/internal/supervisor"
	"github.com/tomtom215/cadence/internal/supervisor/services"
	"github.com/tomtom215/cadence/internal/transport"
	ws "github.com/tomtom215/cadence/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	if cfg.Device.Version == "" || cfg.Device.Version == "dev" {
		cfg.Device.Version = version
	}

	logging.Info().
		Str("version", version).
		Str("domain", cfg.Service.Domain).
		Str("store", cfg.Store.Path).
		Bool("realtime", cfg.Service.RealtimeURL != "").
		Msg("Starting Cadence")

	db, err := store.Open(store.Config{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}

	runErr := run(cfg, db)
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing state store")
	}
	if runErr != nil {
		logging.Error().Err(runErr).Msg("Cadence stopped with error")
		os.Exit(1)
	}
	logging.Info().Msg("Cadence stopped gracefully")
}

// run wires the components and blocks until a shutdown signal.
func run(cfg *config.Config, db *store.Store) error {
	client, err := transport.New(transport.Config{
		Domain:         cfg.Service.Domain,
		ConsumerKey:    cfg.OAuth.ConsumerKey,
		ConsumerSecret: cfg.OAuth.ConsumerSecret,
		Timeout:        cfg.Service.Timeout,
		RateLimit:      cfg.Service.RateLimit,
		Burst:          cfg.Service.Burst,
		UserAgent:      "Cadence/" + version,
	})
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	hub := ws.NewHub(256)
	lib := library.New(hub.Notify)
	player := library.NewPlayer(func(command string) {
		hub.Notify(models.NotifyPlayerCommand, map[string]string{"command": command})
	}, hub.Notify)

	manager, err := cloud.NewManager(cfg, cloud.Deps{
		Client:   client,
		Store:    db,
		Library:  lib,
		Player:   player,
		Notifier: hub,
	})
	if err != nil {
		return fmt.Errorf("create sync engine: %w", err)
	}

	router, err := api.NewRouter(api.Deps{
		Engine:  manager,
		Bridge:  manager.Bridge(),
		Library: lib,
		Player:  player,
		Hub:     hub,
	}, api.MiddlewareConfigFrom(cfg.API))
	if err != nil {
		return fmt.Errorf("create control API: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Service.Timeout,
		WriteTimeout:      cfg.Service.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(store.NewGCService(db, cfg.Store.GCInterval))

	tree.AddEngineService(services.NewEngineService(manager))
	if cfg.Service.RealtimeURL != "" {
		rt, err := realtime.New(realtime.Config{
			URL:      cfg.Service.RealtimeURL,
			DeviceID: client.DeviceID,
		}, manager.Bridge())
		if err != nil {
			return fmt.Errorf("create realtime client: %w", err)
		}
		tree.AddEngineService(rt)
	}

	tree.AddAPIService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Control API service added")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	var serveErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	return serveErr
}
