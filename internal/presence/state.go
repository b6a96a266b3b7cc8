// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package presence

// Phase is the lifecycle position of one connection.
type Phase uint8

const (
	// PhaseConnected is an open connection that has not identified. It is not routable.
	PhaseConnected Phase = iota + 1
	// PhaseIdentified is a connection registered under a user id.
	PhaseIdentified
	// PhaseClosed is terminal. The handle is never reused.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnected:
		return "connected"
	case PhaseIdentified:
		return "identified"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnState is the tagged per-connection state. UserID is set only in PhaseIdentified.
type ConnState struct {
	Phase  Phase
	UserID string
}

// Anonymous returns the Connected(anonymous) state.
func Anonymous() ConnState { return ConnState{Phase: PhaseConnected} }

// Identified returns the Identified(userID) state.
func Identified(userID string) ConnState { return ConnState{Phase: PhaseIdentified, UserID: userID} }

// Closed returns the terminal state.
func Closed() ConnState { return ConnState{Phase: PhaseClosed} }

// Routable reports whether fan-out may target the connection.
func (s ConnState) Routable() bool { return s.Phase == PhaseIdentified }

func (s ConnState) String() string {
	if s.Phase == PhaseIdentified {
		return "identified(" + s.UserID + ")"
	}
	return s.Phase.String()
}
