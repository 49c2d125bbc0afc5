// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package supervisor provides process supervision for Cadence using suture v4.

The tree organizes long-running services into three layers:

	RootSupervisor ("cadence")
	├── DataSupervisor ("data-layer")
	│   └── store.GCService
	├── EngineSupervisor ("engine-layer")
	│   ├── services.EngineService (cloud.Manager)
	│   └── realtime.Client (if a push URL is configured)
	└── APISupervisor ("api-layer")
	    ├── websocket.Hub
	    └── services.HTTPServerService

Crashed services restart with suture's backoff. Failures are counted per
layer, so a flapping push connection does not restart the HTTP server.
Supervisor events are logged through sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"),
	    supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddDataService(store.NewGCService(db, cfg.Store.GCInterval))
	tree.AddEngineService(services.NewEngineService(manager))
	tree.AddAPIService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor stopped")
	}
*/
package supervisor
