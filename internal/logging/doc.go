// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package logging provides the zerolog-based global logger used across IMConnect.
//
// JSON output is the default; console output is intended for local development.
// Call Init once from main before any other component starts:
//
//	logging.Init(logging.Config{
//	    Level:  cfg.Logging.Level,
//	    Format: cfg.Logging.Format,
//	    Caller: cfg.Logging.Caller,
//	})
//
// Request-scoped fields travel through context.Context:
//
//	logging.Ctx(r.Context()).Info().Str("message_id", id).Msg("Message deleted")
//
// Two adapters route third-party logging into the same sink:
//
//   - SlogHandler / NewSlogLogger for log/slog consumers (suture via sutureslog)
//   - WatermillLogger for the watermill relay publisher and subscriber
//
// Always terminate event chains with Msg or Send; an unterminated chain is never written.
package logging
