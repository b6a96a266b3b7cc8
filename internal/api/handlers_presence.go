// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/imconnect/internal/validation"
)

// PresenceStatus is the body of a presence lookup.
type PresenceStatus struct {
	UserID      string `json:"userId"`
	Online      bool   `json:"online"`
	Connections int    `json:"connections"`
}

// Presence reports whether a user has identified connections on this node.
//
// GET /api/v1/presence/{userId}
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !validation.IsValidID(userID) {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "userId must be a non-blank identifier", nil)
		return
	}

	n := len(h.presence.Lookup(userID))
	respondData(w, r, http.StatusOK, PresenceStatus{
		UserID:      userID,
		Online:      n > 0,
		Connections: n,
	})
}
