// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/imconnect/internal/config"
	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/relay"
)

// RelayComponents holds the cross-node fan-out relay and, when configured,
// the embedded NATS server it connects to.
type RelayComponents struct {
	Relay  *relay.Relay
	server *relay.EmbeddedServer
}

// InitRelay builds the relay for cfg. It returns nil, nil when the relay is disabled.
func InitRelay(cfg *config.RelayConfig) (*RelayComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Fan-out relay disabled (RELAY_ENABLED=false)")
		return nil, nil
	}

	wmLogger := logging.NewWatermillLogger("relay")
	rc := &RelayComponents{}

	var (
		pub message.Publisher
		sub message.Subscriber
	)

	switch cfg.Backend {
	case config.RelayBackendMemory:
		ps := relay.NewMemoryPubSub(wmLogger)
		pub, sub = ps, ps

	case config.RelayBackendNATS:
		url := cfg.URL
		if cfg.EmbeddedServer {
			srv, err := relay.NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
			if err != nil {
				return nil, fmt.Errorf("start embedded NATS server: %w", err)
			}
			rc.server = srv
			url = srv.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}

		var err error
		pub, sub, err = relay.NewNATSPubSub(relay.DefaultNATSConfig(url), wmLogger)
		if err != nil {
			_ = rc.shutdownServer() // best-effort cleanup
			return nil, fmt.Errorf("connect relay to %s: %w", url, err)
		}

	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.Backend)
	}

	rc.Relay = relay.NewRelay(pub, sub, relay.Config{
		Topic:  cfg.Topic,
		NodeID: cfg.NodeID,
	})

	logging.Info().
		Str("backend", cfg.Backend).
		Str("topic", rc.Relay.Topic()).
		Str("node_id", rc.Relay.NodeID()).
		Msg("Fan-out relay initialized")

	return rc, nil
}

// Shutdown closes the relay, then the embedded server. Call it after the
// supervisor tree has stopped the relay subscriber.
func (rc *RelayComponents) Shutdown() error {
	if rc == nil {
		return nil
	}
	var errs []error
	if err := rc.Relay.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := rc.shutdownServer(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rc *RelayComponents) shutdownServer() error {
	if rc.server == nil || !rc.server.IsRunning() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rc.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown embedded NATS server: %w", err)
	}
	return nil
}
