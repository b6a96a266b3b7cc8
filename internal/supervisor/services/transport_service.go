// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package services

import (
	"context"
)

// TransportRunner matches *websocket.Transport's Run method.
type TransportRunner interface {
	Run(ctx context.Context) error
}

// TransportService runs the websocket transport's hub loop as a supervised service.
//
// On shutdown the hub closes every connection, and each close is reported to
// the presence handler as a disconnect, so the registry ends empty.
//
//	svc := services.NewTransportService(transport)
//	tree.AddMessagingService(svc)
type TransportService struct {
	transport TransportRunner
	name      string
}

// NewTransportService creates a new transport service wrapper.
func NewTransportService(transport TransportRunner) *TransportService {
	return &TransportService{
		transport: transport,
		name:      "websocket-transport",
	}
}

// Serve implements suture.Service. It returns ctx.Err() on normal shutdown.
func (s *TransportService) Serve(ctx context.Context) error {
	return s.transport.Run(ctx)
}

// String implements fmt.Stringer for logging.
func (s *TransportService) String() string {
	return s.name
}
