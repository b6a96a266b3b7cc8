// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package api provides the HTTP surface of the service: message endpoints,
presence lookup, health probes, Prometheus metrics and the websocket mount.

Routing uses go-chi/chi with go-chi/cors and go-chi/httprate:

	GET    /health                                 health summary
	GET    /health/live, /health/ready             probes
	GET    /metrics                                Prometheus scrape
	GET    /ws                                     websocket upgrade
	POST   /api/v1/messages/send                   store and push a message (201)
	POST   /api/v1/messages/markAsRead             mark a conversation read
	DELETE /api/v1/messages/delete/{messageId}     delete and broadcast (404 when absent)
	GET    /api/v1/messages/{userId}/{otherUserId} conversation, newest first
	GET    /api/v1/messages/{userId}               conversation partners
	GET    /api/v1/presence/{userId}               {userId, online, connections}

Every JSON response uses the APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "NOT_FOUND", "message": "..."}}

Messaging errors map to status codes in respondServiceError: invalid input is
400 VALIDATION_ERROR, a missing message 404, an open store circuit breaker 503.
*/
package api
