// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/imconnect/internal/messaging"
	"github.com/tomtom215/imconnect/internal/validation"
)

// SendMessage stores a direct message and pushes it to the receiver.
//
// POST /api/v1/messages/send {senderId, receiverId, message, isImage} -> 201 with the record.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messaging.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	msg, err := h.messages.Send(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, msg)
}

// Conversation returns the messages between two users, newest first.
//
// GET /api/v1/messages/{userId}/{otherUserId}
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	otherUserID := chi.URLParam(r, "otherUserId")

	messages, err := h.messages.Conversation(r.Context(), userID, otherUserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, messages)
}

// Participants returns the users someone has exchanged messages with.
//
// GET /api/v1/messages/{userId}
func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.messages.Participants(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, participants)
}

// MarkAsRead marks a conversation read by senderId and notifies receiverId.
//
// POST /api/v1/messages/markAsRead {senderId, receiverId} -> {modifiedCount}
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	var req messaging.MarkAsReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	receipt, err := h.messages.MarkAsRead(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, receipt)
}

// DeleteMessage removes a message and broadcasts the deletion.
//
// DELETE /api/v1/messages/delete/{messageId} -> 200, or 404 when absent.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	if !validation.IsValidID(messageID) {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "messageId must be a non-blank identifier", nil)
		return
	}

	if err := h.messages.Delete(r.Context(), messageID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, messaging.Deletion{MessageID: messageID})
}
