// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import "context"

// Store persists direct messages.
type Store interface {
	// SaveMessage durably stores a new message and returns the stored record.
	SaveMessage(ctx context.Context, msg NewMessage) (*Message, error)
	// GetMessage returns ErrNotFound for unknown ids.
	GetMessage(ctx context.Context, id string) (*Message, error)
	// DeleteMessage reports whether a message was deleted.
	DeleteMessage(ctx context.Context, id string) (bool, error)
	// Conversation returns the messages between a and b, newest first.
	Conversation(ctx context.Context, a, b string) ([]Message, error)
	// MarkAsRead marks every message between reader and other as read by
	// reader and returns how many messages changed.
	MarkAsRead(ctx context.Context, reader, other string) (int, error)
	// Participants returns one summary per user userID has exchanged messages
	// with, ordered by earliest message.
	Participants(ctx context.Context, userID string) ([]Participant, error)
	Close() error
}
