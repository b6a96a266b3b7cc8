// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/imconnect/internal/fanout"
	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/validation"
)

// Notifier pushes events to connected users. *fanout.Router satisfies it.
type Notifier interface {
	Deliver(userID, event string, payload interface{}) int
	Broadcast(event string, payload interface{}) int
}

// SendRequest is the body of a send message request.
type SendRequest struct {
	SenderID   string `json:"senderId" validate:"required,userid"`
	ReceiverID string `json:"receiverId" validate:"required,userid"`
	Message    string `json:"message" validate:"required,max=65536"`
	IsImage    bool   `json:"isImage"`
}

// MarkAsReadRequest is the body of a mark as read request. SenderID is the
// user reading the conversation and ReceiverID the other side of it.
type MarkAsReadRequest struct {
	SenderID   string `json:"senderId" validate:"required,userid"`
	ReceiverID string `json:"receiverId" validate:"required,userid"`
}

// Service implements the message operations. Every mutation is persisted
// before its event is handed to the Notifier, so a failed write never
// produces a notification.
type Service struct {
	store    Store
	notifier Notifier
	logger   zerolog.Logger
}

// NewService returns a Service over store. notifier may be nil, in which
// case no events are sent.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logging.WithComponent("messaging"),
	}
}

// Send stores a message and notifies the receiver's open connections.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, verr)
	}

	msg, err := s.store.SaveMessage(ctx, NewMessage{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Body:       req.Message,
		Image:      req.IsImage,
	})
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if s.notifier != nil {
		n := s.notifier.Deliver(msg.ReceiverID, fanout.EventNewMessage, msg)
		s.logger.Debug().
			Str("message_id", msg.ID).
			Str("receiver_id", msg.ReceiverID).
			Int("delivered", n).
			Msg("Message sent")
	}
	return msg, nil
}

// Delete removes a message and tells every connected user about it.
func (s *Service) Delete(ctx context.Context, messageID string) error {
	if !validation.IsValidID(messageID) {
		return fmt.Errorf("%w: message id", ErrInvalidArgument)
	}

	deleted, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	if s.notifier != nil {
		s.notifier.Broadcast(fanout.EventMessageDeleted, Deletion{MessageID: messageID})
	}
	return nil
}

// MarkAsRead adds req.SenderID to the readers of every message between the
// two users, in both directions. A read receipt goes to req.ReceiverID only
// when at least one message changed.
func (s *Service) MarkAsRead(ctx context.Context, req MarkAsReadRequest) (*ReadReceipt, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, verr)
	}

	n, err := s.store.MarkAsRead(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("mark as read: %w", err)
	}

	receipt := &ReadReceipt{
		ReaderID:      req.SenderID,
		OtherUserID:   req.ReceiverID,
		ModifiedCount: n,
	}
	if s.notifier != nil && n > 0 {
		s.notifier.Deliver(req.ReceiverID, fanout.EventMessagesRead, receipt)
	}
	return receipt, nil
}

// Conversation returns the messages between userID and otherUserID, newest first.
func (s *Service) Conversation(ctx context.Context, userID, otherUserID string) ([]Message, error) {
	if !validation.IsValidID(userID) || !validation.IsValidID(otherUserID) {
		return nil, fmt.Errorf("%w: user id", ErrInvalidArgument)
	}
	messages, err := s.store.Conversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return messages, nil
}

// Participants returns the conversation partners of userID.
func (s *Service) Participants(ctx context.Context, userID string) ([]Participant, error) {
	if !validation.IsValidID(userID) {
		return nil, fmt.Errorf("%w: user id", ErrInvalidArgument)
	}
	participants, err := s.store.Participants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	return participants, nil
}
