// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
}

// ResilientStore wraps a Store with a circuit breaker. While the breaker is
// open calls fail fast with ErrStoreUnavailable.
//
// ErrNotFound and context cancellation are outcomes, not failures, and do not
// count towards tripping the breaker.
type ResilientStore struct {
	store Store
	cb    *gobreaker.CircuitBreaker[interface{}]
}

// NewResilientStore wraps store.
func NewResilientStore(store Store, cfg BreakerConfig) *ResilientStore {
	if cfg.Name == "" {
		cfg.Name = "message-store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, from.String(), to.String(), int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &ResilientStore{
		store: store,
		cb:    gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// State returns the breaker state name: closed, half-open or open.
func (r *ResilientStore) State() string {
	return r.cb.State().String()
}

func (r *ResilientStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := r.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result, err
}

// SaveMessage implements Store.
func (r *ResilientStore) SaveMessage(ctx context.Context, msg NewMessage) (*Message, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.SaveMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Message), nil
}

// GetMessage implements Store.
func (r *ResilientStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.GetMessage(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Message), nil
}

// DeleteMessage implements Store.
func (r *ResilientStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.DeleteMessage(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Conversation implements Store.
func (r *ResilientStore) Conversation(ctx context.Context, a, b string) ([]Message, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.Conversation(ctx, a, b)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Message), nil
}

// MarkAsRead implements Store.
func (r *ResilientStore) MarkAsRead(ctx context.Context, reader, other string) (int, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.MarkAsRead(ctx, reader, other)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Participants implements Store.
func (r *ResilientStore) Participants(ctx context.Context, userID string) ([]Participant, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.store.Participants(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Participant), nil
}

// Close closes the wrapped store.
func (r *ResilientStore) Close() error {
	return r.store.Close()
}
