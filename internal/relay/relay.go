// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// DefaultTopic is the topic envelopes are exchanged on when none is configured.
const DefaultTopic = "imconnect.fanout"

const metadataOrigin = "origin"

// ErrSubscriptionClosed is returned by Run when the subscriber closes the
// message channel before the context is done.
var ErrSubscriptionClosed = errors.New("relay subscription closed")

// Config configures a Relay.
type Config struct {
	Topic string
	// NodeID identifies this process. Envelopes carrying it are skipped on receipt.
	NodeID string
}

// Sink applies an envelope received from a peer to local connections only.
type Sink interface {
	Apply(env Envelope) int
}

// Relay forwards fan-out requests between nodes over a watermill pub/sub.
// Each node delivers to its own handles first and publishes an Envelope;
// peers apply it to theirs. Delivery is best-effort on both sides.
type Relay struct {
	pub    message.Publisher
	sub    message.Subscriber
	topic  string
	nodeID string
	logger zerolog.Logger
}

// NewRelay returns a Relay using pub and sub. pub and sub may be the same value.
func NewRelay(pub message.Publisher, sub message.Subscriber, cfg Config) *Relay {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	return &Relay{
		pub:    pub,
		sub:    sub,
		topic:  cfg.Topic,
		nodeID: cfg.NodeID,
		logger: logging.WithComponent("relay").With().Str("node_id", cfg.NodeID).Logger(),
	}
}

// NodeID returns the id stamped on published envelopes.
func (r *Relay) NodeID() string { return r.nodeID }

// Topic returns the topic the relay publishes to and subscribes on.
func (r *Relay) Topic() string { return r.topic }

// Publish stamps env with this node's id and publishes it.
func (r *Relay) Publish(env Envelope) error {
	env.Origin = r.nodeID
	if err := env.Validate(); err != nil {
		metrics.RelayPublished.WithLabelValues("invalid").Inc()
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		metrics.RelayPublished.WithLabelValues("invalid").Inc()
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataOrigin, r.nodeID)

	if err := r.pub.Publish(r.topic, msg); err != nil {
		metrics.RelayPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish to %s: %w", r.topic, err)
	}
	metrics.RelayPublished.WithLabelValues("ok").Inc()
	return nil
}

// Run subscribes to the topic and hands peer envelopes to sink until ctx is done.
// Every message is acked: own-origin and malformed messages are skipped, never redelivered.
func (r *Relay) Run(ctx context.Context, sink Sink) error {
	messages, err := r.sub.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	r.logger.Info().Str("topic", r.topic).Msg("Relay subscribed")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Relay stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			r.handle(msg, sink)
		}
	}
}

func (r *Relay) handle(msg *message.Message, sink Sink) {
	defer msg.Ack()

	if msg.Metadata.Get(metadataOrigin) == r.nodeID {
		metrics.RelayReceived.WithLabelValues("own").Inc()
		return
	}

	env, err := decodeEnvelope(msg.Payload)
	if err != nil {
		metrics.RelayReceived.WithLabelValues("malformed").Inc()
		r.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed relay message")
		return
	}
	if env.Origin == r.nodeID {
		metrics.RelayReceived.WithLabelValues("own").Inc()
		return
	}

	n := sink.Apply(env)
	metrics.RelayReceived.WithLabelValues("applied").Inc()
	r.logger.Debug().
		Str("origin", env.Origin).
		Str("kind", env.Kind).
		Str("event", env.Event).
		Int("handles", n).
		Msg("Applied relay envelope")
}

// Close closes the publisher and, when it is a separate value, the subscriber.
func (r *Relay) Close() error {
	var errs []error
	if err := r.pub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if any(r.sub) != any(r.pub) {
		if err := r.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}
