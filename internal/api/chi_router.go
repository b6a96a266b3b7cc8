// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/imconnect/internal/middleware"
)

// DefaultWebSocketPath is where the transport is mounted unless configured otherwise.
const DefaultWebSocketPath = "/ws"

// Router wires handlers, middleware and the websocket endpoint into one http.Handler.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	ws            http.Handler
	wsPath        string
}

// NewRouter creates a Router. ws is the websocket transport; it may be nil in tests.
func NewRouter(handler *Handler, mw *ChiMiddleware, ws http.Handler, wsPath string) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if wsPath == "" {
		wsPath = DefaultWebSocketPath
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		ws:            ws,
		wsPath:        wsPath,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware. None of these wrap the ResponseWriter, so the
	// websocket upgrade can still hijack the connection.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	// ========================
	// Health & Metrics
	// ========================
	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Transport
	// ========================
	if router.ws != nil {
		r.Get(router.wsPath, router.ws.ServeHTTP)
	}

	// ========================
	// API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Post("/messages/send", router.handler.SendMessage)
		r.Post("/messages/markAsRead", router.handler.MarkAsRead)
		r.Delete("/messages/delete/{messageId}", router.handler.DeleteMessage)
		r.Get("/messages/{userId}/{otherUserId}", router.handler.Conversation)
		r.Get("/messages/{userId}", router.handler.Participants)

		r.Get("/presence/{userId}", router.handler.Presence)
	})

	return r
}
