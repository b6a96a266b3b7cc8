// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package websocket

import "errors"

var (
	// ErrUnknownHandle is returned by EmitTo for a handle with no open connection.
	ErrUnknownHandle = errors.New("unknown connection handle")

	// ErrSendBufferFull is returned by EmitTo when the connection's outbound
	// buffer is full. The message is dropped and the connection stays open.
	ErrSendBufferFull = errors.New("connection send buffer full")
)
