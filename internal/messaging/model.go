// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"time"
	"unicode/utf8"
)

// SnippetLength is the number of characters kept in a participant's message snippet.
const SnippetLength = 40

// noMessageSnippet is shown for a conversation whose last message is empty.
const noMessageSnippet = "No message"

// Message is a persisted direct message. The JSON shape is what the web client
// receives in newMessage events and conversation responses.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"message"`
	Image      bool      `json:"image"`
	Timestamp  time.Time `json:"timestamp"`
	ReadBy     []string  `json:"readBy"`
}

// IsReadBy reports whether userID has read the message.
func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// markRead adds userID to ReadBy and reports whether it changed.
func (m *Message) markRead(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// NewMessage is the input to Store.SaveMessage.
type NewMessage struct {
	SenderID   string
	ReceiverID string
	Body       string
	Image      bool
}

// Participant summarizes one conversation from a user's point of view.
type Participant struct {
	UserID string `json:"userId"`
	// EarliestMessageTime is the time of the first message exchanged.
	EarliestMessageTime time.Time `json:"earliestMessageTime"`
	// LastMessageTime is the time of the most recent message exchanged.
	LastMessageTime time.Time `json:"lastMessageTime"`
	// Snippet is the first SnippetLength characters of the most recent message.
	Snippet string `json:"earliestMessageSnippet"`
	// ChatNotRead is true when a message from UserID has not been read.
	ChatNotRead bool `json:"chatNotRead"`
}

// snippet truncates body to SnippetLength characters.
func snippet(body string) string {
	if body == "" {
		return noMessageSnippet
	}
	if utf8.RuneCountInString(body) <= SnippetLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:SnippetLength])
}

// ReadReceipt is the payload of a messagesRead event.
type ReadReceipt struct {
	ReaderID      string `json:"readerId"`
	OtherUserID   string `json:"otherUserId"`
	ModifiedCount int    `json:"modifiedCount"`
}

// Deletion is the payload of a messageDeleted event.
type Deletion struct {
	MessageID string `json:"messageId"`
}
