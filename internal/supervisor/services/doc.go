// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package services provides suture.Service wrappers for the server's long-running
components.

Each wrapper translates a component's lifecycle (Run, RunGC, ListenAndServe)
into suture's context-aware Serve(ctx) error and names itself via
fmt.Stringer for the supervisor's event log.

	HTTPServerService    *http.Server, graceful shutdown with a timeout
	TransportService     websocket transport hub loop
	RelayService         cross-node fan-out subscriber, resubscribes on failure
	StoreGCService       badger value log garbage collection

Wrappers depend on small interfaces rather than concrete types so they can be
tested with doubles.
*/
package services
