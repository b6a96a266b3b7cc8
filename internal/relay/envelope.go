// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package relay

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Envelope kinds.
const (
	KindDeliver   = "deliver"
	KindBroadcast = "broadcast"
)

// Envelope is one fan-out request forwarded to peer nodes.
// Target is the user id for KindDeliver and empty for KindBroadcast.
type Envelope struct {
	Origin  string          `json:"origin"`
	Kind    string          `json:"kind"`
	Target  string          `json:"target,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewDeliver builds a KindDeliver envelope, encoding payload as JSON.
func NewDeliver(userID, event string, payload interface{}) (Envelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindDeliver, Target: userID, Event: event, Payload: raw}, nil
}

// NewBroadcast builds a KindBroadcast envelope, encoding payload as JSON.
func NewBroadcast(event string, payload interface{}) (Envelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindBroadcast, Event: event, Payload: raw}, nil
}

// Validate checks the fields a receiving node depends on.
func (e Envelope) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("envelope: missing event")
	}
	switch e.Kind {
	case KindDeliver:
		if e.Target == "" {
			return fmt.Errorf("envelope: deliver without target")
		}
	case KindBroadcast:
	default:
		return fmt.Errorf("envelope: unknown kind %q", e.Kind)
	}
	return nil
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode envelope payload: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
