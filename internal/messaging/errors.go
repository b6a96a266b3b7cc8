// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import "errors"

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidArgument is returned for requests with missing or malformed fields.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable is returned while the store's circuit breaker is open.
	ErrStoreUnavailable = errors.New("message store unavailable")
)
