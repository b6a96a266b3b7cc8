// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built on first use and reused; it caches
// struct metadata so repeated validation of request types is cheap.
//
// # Field Names
//
// Error messages and details name fields by their json tag, so a client that
// sends {"senderId": ""} sees "senderId is required" rather than the Go field
// name.
//
// # Custom Validators
//
//   - userid: a non-blank string of at most MaxIDLength bytes with no control
//     characters. Used for user ids and message ids, which are opaque.
//
// # Error Format
//
// ToAPIError converts a RequestValidationError into the VALIDATION_ERROR
// response body. A single failure carries {"field", "tag"} in Details; several
// failures carry a "fields" list.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
