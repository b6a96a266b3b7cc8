// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package websocket is the push transport for presence and fan-out.

It wraps gorilla/websocket behind four primitives consumed by the rest of the
service: OnConnect, OnEvent, OnDisconnect and EmitTo. Each accepted connection
gets an opaque uuid handle; nothing outside this package sees a *websocket.Conn.

Key Components:

  - Transport: upgrades requests (origin allow-list), owns the callbacks and
    the process-wide instance returned by Initialize.
  - Hub: serializes connect and disconnect through one run loop and keeps the
    handle -> client map used by EmitTo.
  - Client: one connection with a read goroutine and a write goroutine.

Wire format:

Every frame in both directions is a JSON object:

	{"type": "identify", "data": {"userId": "alice"}}
	{"type": "newMessage", "data": { ...persisted message... }}
	{"type": "messageDeleted", "data": {"messageId": "..."}}

A "ping" frame is answered with "pong" by the transport itself. Protocol-level
pings are sent every PingInterval; a connection silent for PingInterval plus
PingTimeout is closed.

Ordering:

The hub calls connect callbacks before the client's pumps start, so no event
from a connection is delivered before its connect. Disconnect callbacks run
once per connection, including for connections closed by shutdown.

Backpressure:

EmitTo never blocks. Each client has a bounded send buffer; when it is full
the message is dropped with ErrSendBufferFull and the connection stays open.
Inbound events are limited per connection with a token bucket.

Usage:

	tr, _ := websocket.Initialize(websocket.Config{AllowedOrigins: origins})
	presence.NewHandler(registry).Attach(tr)
	router := fanout.NewRouter(registry, tr)

	mux.Handle("/ws", tr)
	go tr.Run(ctx)
*/
package websocket
