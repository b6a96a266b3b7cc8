// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package presence tracks which users are reachable and through which connections.
//
// Registry maps a user id to the set of live connection handles identified as
// that user, with a reverse index from handle to user so a disconnect is O(1).
// A user key exists only while its handle set is non-empty and a handle belongs
// to at most one user at a time.
//
// Handler drives the per-connection state machine
//
//	Connected(anonymous) -> Identified(userId) -> Closed
//
// from transport events and is the only writer of the Registry. Other
// components (the fan-out router, the presence API) read through Lookup,
// IsOnline and Handles on every use and never keep the returned slices.
//
// The Registry is an ordinary value: construct one per process in main and pass
// it to the components that need it. Tests create a fresh Registry each.
package presence
