// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package api

import (
	"net/http"
	"time"
)

const breakerOpen = "open"

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status       string  `json:"status"`
	Connections  int     `json:"connections"`
	OnlineUsers  int     `json:"online_users"`
	Handles      int     `json:"registered_handles"`
	StoreBreaker string  `json:"store_breaker,omitempty"`
	RelayEnabled bool    `json:"relay_enabled"`
	RelayNodeID  string  `json:"relay_node_id,omitempty"`
	Uptime       float64 `json:"uptime"`
}

// Health reports connection counts, presence size and dependency state.
// The status is degraded while the store circuit breaker is open.
//
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.presence.Stats()
	health := HealthStatus{
		Status:       "healthy",
		Connections:  h.conns.Connections(),
		OnlineUsers:  stats.Users,
		Handles:      stats.Handles,
		RelayEnabled: h.relayNode != "",
		RelayNodeID:  h.relayNode,
		Uptime:       time.Since(h.startTime).Seconds(),
	}
	if h.store != nil {
		health.StoreBreaker = h.store.State()
		if health.StoreBreaker == breakerOpen {
			health.Status = "degraded"
		}
	}

	respondData(w, r, http.StatusOK, health)
}

// HealthLive returns 200 OK if the process is alive, regardless of dependencies.
//
// GET /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 while the message store is failing fast.
//
// GET /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.store == nil || h.store.State() != breakerOpen

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}
	respondJSON(w, statusCode, &APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"ready_to_serve": ready,
			"uptime":         time.Since(h.startTime).Seconds(),
		},
		Metadata: newMetadata(r),
	})
}
