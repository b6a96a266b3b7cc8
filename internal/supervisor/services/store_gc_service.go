// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package services

import (
	"context"
	"time"
)

// GarbageCollector matches *messaging.BadgerStore's RunGC method.
type GarbageCollector interface {
	RunGC(ctx context.Context, interval time.Duration) error
}

// StoreGCService runs periodic value log garbage collection for the message store.
type StoreGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService creates a GC service. A non-positive interval defaults to 5 minutes.
func NewStoreGCService(store GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		name:     "message-store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	return s.store.RunGC(ctx, s.interval)
}

// String implements fmt.Stringer for logging.
func (s *StoreGCService) String() string {
	return s.name
}
