// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package messaging stores direct messages and turns message mutations into
// real-time events.
//
// Storage is a BadgerDB key space (BadgerStore) wrapped in a gobreaker circuit
// breaker (ResilientStore). Service validates requests, persists, and only then
// hands events to a Notifier (the fan-out router):
//
//	send        -> newMessage      to the receiver
//	delete      -> messageDeleted  to every identified connection
//	markAsRead  -> messagesRead    to the other participant
//
// JSON field names follow the existing web client: _id, senderId, receiverId,
// message, image, timestamp, readBy.
package messaging
