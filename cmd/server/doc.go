// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package main is the entry point for the IMConnect server.

IMConnect keeps track of which users are online over websocket connections and
pushes chat events (new message, message deleted, messages read) to every
live connection of the users concerned. Messages are persisted in BadgerDB and
served over a small REST API.

# Application Architecture

	RootSupervisor ("imconnect")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── TransportService (websocket hub)
	│   └── RelayService (if RELAY_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (REST API, /ws, /metrics, /health)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output
 3. Presence: connection registry, websocket transport, presence handler
 4. Message store: BadgerDB behind a gobreaker circuit breaker
 5. Relay (optional): watermill over in-memory channels or NATS
 6. Fan-out router and messaging service
 7. HTTP router: chi with CORS, rate limiting, request ids and metrics
 8. Supervisor tree: suture v4

# Configuration

	HTTP_PORT=5000               # HTTP and websocket listen port
	WS_PATH=/ws                  # websocket endpoint
	WS_ALLOWED_ORIGINS=https://imconnect.netlify.app
	CORS_ORIGINS=https://imconnect.netlify.app
	STORE_PATH=/data/messages    # BadgerDB directory
	RELAY_ENABLED=true           # fan out across nodes
	RELAY_BACKEND=nats           # memory or nats
	NATS_URL=nats://nats:4222
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains in-flight requests,
the websocket hub closes every connection and the presence registry is emptied
through the normal disconnect path. The relay, the embedded NATS server and the
message store are closed after the tree returns.

# Example Usage

Single node with an in-memory store:

	export STORE_IN_MEMORY=true
	export LOG_FORMAT=console
	./imconnect

Two nodes sharing a NATS server:

	export RELAY_ENABLED=true RELAY_BACKEND=nats NATS_URL=nats://nats:4222
	./imconnect
*/
package main
