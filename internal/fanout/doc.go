// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package fanout routes server events to the live connections of a user.
//
// The Router reads the presence Registry through Directory and never caches
// what it reads: each Deliver looks the user up again, so a connection that
// closed while a message was being persisted is not targeted. Emission goes
// through Emitter, implemented by the websocket Transport.
package fanout
