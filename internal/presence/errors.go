// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package presence

import "errors"

var (
	// ErrInvalidArgument is returned for empty or malformed user ids, handles and identify payloads.
	ErrInvalidArgument = errors.New("presence: invalid argument")

	// ErrInvalidState is returned for events that do not fit the connection's current state,
	// such as identify on an unknown or closed handle or a second connect for the same handle.
	ErrInvalidState = errors.New("presence: invalid state")
)
