// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package presence

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// Client events consumed by the Handler.
const (
	EventIdentify = "identify"
	// EventUserConnected is the legacy name of identify sent by older web clients
	// with a bare user id string as payload.
	EventUserConnected = "userConnected"
)

// Identify outcomes used for metrics and logs.
const (
	outcomeRegistered = "registered"
	outcomeRepeated   = "repeated"
	outcomeRebound    = "rebound"
	outcomeRejected   = "rejected"
)

// defaultTombstones bounds how many closed handles are remembered.
const defaultTombstones = 4096

// EventSource is the subset of the transport the Handler subscribes to.
type EventSource interface {
	OnConnect(fn func(handle string))
	OnEvent(name string, fn func(handle string, payload []byte))
	OnDisconnect(fn func(handle string))
}

// Handler applies transport connect, identify and disconnect events to the Registry.
// It is the Registry's only writer.
type Handler struct {
	registry *Registry
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[string]ConnState
	// closed remembers recently closed handles so late events are rejected
	// instead of resurrecting the connection.
	closed     map[string]struct{}
	closedRing []string
	closedNext int
}

// NewHandler returns a Handler writing to registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{
		registry:   registry,
		logger:     logging.WithComponent("presence"),
		conns:      make(map[string]ConnState),
		closed:     make(map[string]struct{}, defaultTombstones),
		closedRing: make([]string, defaultTombstones),
	}
}

// Attach subscribes the Handler to src's connect, identify and disconnect events.
func (h *Handler) Attach(src EventSource) {
	src.OnConnect(func(handle string) {
		if err := h.OnConnect(handle); err != nil {
			h.logger.Warn().Err(err).Str("handle", handle).Msg("Connect rejected")
		}
	})

	identify := func(handle string, payload []byte) {
		// Errors are logged and counted inside OnIdentify; the connection stays open.
		_, _ = h.OnIdentify(handle, payload)
	}
	src.OnEvent(EventIdentify, identify)
	src.OnEvent(EventUserConnected, identify)

	src.OnDisconnect(func(handle string) {
		h.OnDisconnect(handle)
	})
}

// OnConnect records a new anonymous connection. The Registry is not touched:
// an anonymous connection is not routable.
func (h *Handler) OnConnect(handle string) error {
	if err := validateID("handle", handle); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.closed[handle]; ok {
		return fmt.Errorf("%w: handle %s already closed", ErrInvalidState, handle)
	}
	if st, ok := h.conns[handle]; ok {
		return fmt.Errorf("%w: handle %s already %s", ErrInvalidState, handle, st)
	}

	h.conns[handle] = Anonymous()
	h.logger.Debug().Str("handle", handle).Msg("Connection opened")
	return nil
}

// OnIdentify binds the connection to the user id carried in payload.
//
// Accepted payloads are {"userId": "..."} and a bare JSON string. A malformed
// payload is rejected with ErrInvalidArgument and the state is left as it was.
// Identifying again as the same user is a no-op. Identifying as a different user
// removes the old mapping before the new one is registered.
func (h *Handler) OnIdentify(handle string, payload []byte) (ConnState, error) {
	userID, parseErr := parseIdentify(payload)

	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.conns[handle]
	if !ok {
		metrics.RecordIdentify(outcomeRejected)
		if _, closed := h.closed[handle]; closed {
			return Closed(), fmt.Errorf("%w: identify on closed handle %s", ErrInvalidState, handle)
		}
		return ConnState{}, fmt.Errorf("%w: identify on unknown handle %s", ErrInvalidState, handle)
	}

	if parseErr != nil {
		metrics.RecordIdentify(outcomeRejected)
		h.logger.Warn().Err(parseErr).Str("handle", handle).Str("state", st.String()).Msg("Identify rejected")
		return st, parseErr
	}

	outcome := outcomeRegistered
	if st.Phase == PhaseIdentified {
		if st.UserID == userID {
			outcome = outcomeRepeated
		} else {
			outcome = outcomeRebound
			h.registry.Unregister(handle)
		}
	}

	if err := h.registry.Register(userID, handle); err != nil {
		if outcome == outcomeRebound {
			// The old mapping is gone; fall back to anonymous rather than keep a stale identity.
			h.conns[handle] = Anonymous()
			st = Anonymous()
		}
		metrics.RecordIdentify(outcomeRejected)
		h.logger.Warn().Err(err).Str("handle", handle).Msg("Identify rejected")
		return st, err
	}

	next := Identified(userID)
	h.conns[handle] = next
	metrics.RecordIdentify(outcome)

	ev := h.logger.Debug().Str("handle", handle).Str("user_id", userID).Str("outcome", outcome)
	if outcome == outcomeRebound {
		ev = ev.Str("previous_user_id", st.UserID)
	}
	ev.Msg("Connection identified")

	return next, nil
}

// OnDisconnect removes the handle from the Registry and marks it closed.
// It is safe for handles that never identified and for repeated notifications.
func (h *Handler) OnDisconnect(handle string) ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, removed := h.registry.Unregister(handle)
	delete(h.conns, handle)
	h.tombstoneLocked(handle)

	ev := h.logger.Debug().Str("handle", handle)
	if removed {
		ev = ev.Str("user_id", userID).Bool("user_online", h.registry.IsOnline(userID))
	}
	ev.Msg("Connection closed")

	return Closed()
}

// State returns the current state of handle. Closed handles still in the
// tombstone set report Closed.
func (h *Handler) State(handle string) (ConnState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.conns[handle]; ok {
		return st, true
	}
	if _, ok := h.closed[handle]; ok {
		return Closed(), true
	}
	return ConnState{}, false
}

// Connections returns the number of open (anonymous or identified) connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) tombstoneLocked(handle string) {
	if _, ok := h.closed[handle]; ok {
		return
	}
	if old := h.closedRing[h.closedNext]; old != "" {
		delete(h.closed, old)
	}
	h.closedRing[h.closedNext] = handle
	h.closedNext = (h.closedNext + 1) % len(h.closedRing)
	h.closed[handle] = struct{}{}
}

type identifyPayload struct {
	UserID string `json:"userId"`
}

// parseIdentify extracts the user id from an identify payload.
func parseIdentify(payload []byte) (string, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return "", fmt.Errorf("%w: missing identify payload", ErrInvalidArgument)
	}

	var userID string
	if payload[0] == '"' {
		if err := json.Unmarshal(payload, &userID); err != nil {
			return "", fmt.Errorf("%w: identify payload: %v", ErrInvalidArgument, err)
		}
	} else {
		var p identifyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", fmt.Errorf("%w: identify payload: %v", ErrInvalidArgument, err)
		}
		userID = p.UserID
	}

	if err := validateID("user id", userID); err != nil {
		return "", err
	}
	return userID, nil
}
