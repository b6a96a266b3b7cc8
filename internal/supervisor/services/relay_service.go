// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/imconnect/internal/relay"
)

// RelaySubscriber matches *relay.Relay's Run method.
type RelaySubscriber interface {
	Run(ctx context.Context, sink relay.Sink) error
}

// RelayService consumes envelopes published by peer nodes and applies them
// to the local fan-out router.
//
// A subscription that ends while ctx is still live is returned as an error so
// the supervisor resubscribes with backoff.
//
//	svc := services.NewRelayService(rel, router)
//	tree.AddMessagingService(svc)
type RelayService struct {
	relay RelaySubscriber
	sink  relay.Sink
	name  string
}

// NewRelayService creates a new relay service wrapper.
func NewRelayService(r RelaySubscriber, sink relay.Sink) *RelayService {
	return &RelayService{
		relay: r,
		sink:  sink,
		name:  "fanout-relay",
	}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	err := s.relay.Run(ctx, s.sink)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, relay.ErrSubscriptionClosed) {
		return fmt.Errorf("relay subscription ended: %w", relay.ErrSubscriptionClosed)
	}
	return fmt.Errorf("relay failed: %w", err)
}

// String implements fmt.Stringer for logging.
func (s *RelayService) String() string {
	return s.name
}
