// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/imconnect/internal/api"
	"github.com/tomtom215/imconnect/internal/config"
	"github.com/tomtom215/imconnect/internal/fanout"
	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/messaging"
	"github.com/tomtom215/imconnect/internal/presence"
	"github.com/tomtom215/imconnect/internal/supervisor"
	"github.com/tomtom215/imconnect/internal/supervisor/services"
	ws "github.com/tomtom215/imconnect/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Bool("relay_enabled", cfg.Relay.Enabled).
		Msg("Starting IMConnect with supervisor tree")

	if cfg.HasWildcardCORS() && cfg.IsProduction() {
		logging.Warn().Msg("Wildcard origin allowed in production, set CORS_ORIGINS and WS_ALLOWED_ORIGINS explicitly")
	}

	// Presence: the handler is the registry's only writer and listens to the transport.
	registry := presence.NewRegistry()
	transport, _ := ws.Initialize(ws.Config{
		AllowedOrigins: cfg.Transport.AllowedOrigins,
		PingInterval:   cfg.Transport.PingInterval,
		PingTimeout:    cfg.Transport.PingTimeout,
		WriteWait:      cfg.Transport.WriteWait,
		MaxMessageSize: cfg.Transport.MaxMessageSize,
		SendBuffer:     cfg.Transport.SendBuffer,
		EventRate:      cfg.Transport.EventRate,
		EventBurst:     cfg.Transport.EventBurst,
	})
	defer transport.Close()

	presenceHandler := presence.NewHandler(registry)
	presenceHandler.Attach(transport)

	// Message store, behind a circuit breaker. Closed after the tree stops.
	badgerStore, err := messaging.OpenBadgerStore(messaging.BadgerConfig{
		Path:     cfg.Store.Path,
		InMemory: cfg.Store.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open message store")
	}
	defer func() {
		if err := badgerStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message store")
		}
	}()

	store := messaging.NewResilientStore(badgerStore, messaging.BreakerConfig{
		FailureThreshold: cfg.Store.BreakerFailures,
		Timeout:          cfg.Store.BreakerTimeout,
	})

	relayComponents, err := InitRelay(&cfg.Relay)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize fan-out relay")
		return
	}
	defer func() {
		if err := relayComponents.Shutdown(); err != nil {
			logging.Error().Err(err).Msg("Error shutting down fan-out relay")
		}
	}()

	var routerOpts []fanout.Option
	if relayComponents != nil {
		routerOpts = append(routerOpts, fanout.WithRelay(relayComponents.Relay))
	}
	router := fanout.NewRouter(registry, transport, routerOpts...)

	messageService := messaging.NewService(store, router)

	handler := api.NewHandler(messageService, registry, presenceHandler)
	handler.SetStoreHealth(store)
	if relayComponents != nil {
		handler.SetRelayNode(relayComponents.Relay.NodeID())
	}

	mw := api.NewChiMiddleware(api.MiddlewareConfigFromSecurity(cfg.Security))
	apiRouter := api.NewRouter(handler, mw, transport, cfg.Transport.Path)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiRouter.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	tree.AddDataService(services.NewStoreGCService(badgerStore, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewTransportService(transport))
	if relayComponents != nil {
		tree.AddMessagingService(services.NewRelayService(relayComponents.Relay, router))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Str("ws_path", cfg.Transport.Path).Msg("Starting supervisor tree...")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	stats := registry.Stats()
	logging.Info().
		Int("users", stats.Users).
		Int("handles", stats.Handles).
		Msg("Application stopped gracefully")
}
