// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package api

import (
	"time"

	"github.com/tomtom215/imconnect/internal/messaging"
	"github.com/tomtom215/imconnect/internal/presence"
)

// PresenceDirectory is the read side of the presence registry.
type PresenceDirectory interface {
	Lookup(userID string) []string
	Stats() presence.Stats
}

// ConnectionCounter reports open transport connections, identified or not.
type ConnectionCounter interface {
	Connections() int
}

// BreakerStater reports the message store circuit breaker state.
type BreakerStater interface {
	State() string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, optional dependencies (this file)
//   - handlers_helpers.go: response envelope, decoding, error mapping
//   - handlers_messages.go: message endpoints
//   - handlers_presence.go: presence lookup
//   - handlers_health.go: health and probes
type Handler struct {
	messages  *messaging.Service
	presence  PresenceDirectory
	conns     ConnectionCounter
	store     BreakerStater // optional
	relayNode string        // empty when the relay is disabled
	startTime time.Time
}

// NewHandler creates a new API handler.
func NewHandler(messages *messaging.Service, dir PresenceDirectory, conns ConnectionCounter) *Handler {
	return &Handler{
		messages:  messages,
		presence:  dir,
		conns:     conns,
		startTime: time.Now(),
	}
}

// SetStoreHealth lets health checks report the store circuit breaker.
func (h *Handler) SetStoreHealth(store BreakerStater) {
	h.store = store
}

// SetRelayNode records the relay node id reported by /health.
func (h *Handler) SetRelayNode(nodeID string) {
	h.relayNode = nodeID
}
