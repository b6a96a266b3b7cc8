// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package supervisor provides process supervision for IMConnect using suture v4.

Long-running components are organized into a three-layer tree:

	RootSupervisor ("imconnect")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService (badger value log GC)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── TransportService (websocket hub loop)
	│   └── RelayService (if RELAY_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently. A relay that keeps losing its NATS
subscription backs off inside the messaging layer while the HTTP API keeps
serving.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewStoreGCService(store, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewTransportService(transport))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree stopped")
	}

# Service Contract

	Serve(ctx) returns ctx.Err()   shutdown requested, not restarted
	Serve(ctx) returns an error    failure, restarted with backoff
	Serve(ctx) returns nil         finished, not restarted

# What Is NOT Supervised

The message store and the embedded NATS server are opened before the tree
starts and closed by main after it returns, so no service can observe them
closed mid-shutdown. The presence registry is plain in-memory state.

# Debugging Shutdown

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
	}
*/
package supervisor
