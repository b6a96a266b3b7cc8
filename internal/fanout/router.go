// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package fanout

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
	"github.com/tomtom215/imconnect/internal/relay"
	"github.com/tomtom215/imconnect/internal/websocket"
)

// Server to client events.
const (
	EventNewMessage     = "newMessage"
	EventMessageDeleted = "messageDeleted"
	EventMessagesRead   = "messagesRead"
)

// Metric scopes.
const (
	scopeUser      = "user"
	scopeBroadcast = "broadcast"
)

// Directory is the read side of the presence Registry.
type Directory interface {
	Lookup(userID string) []string
	Handles() []string
}

// Emitter pushes one event to one connection. EmitTo must not block on a slow
// connection; a full buffer is reported as an error.
type Emitter interface {
	EmitTo(handle, event string, payload interface{}) error
}

// Publisher forwards envelopes to peer nodes.
type Publisher interface {
	Publish(env relay.Envelope) error
}

// Option configures a Router.
type Option func(*Router)

// WithRelay makes the Router publish every Deliver and Broadcast to peers after
// local dispatch.
func WithRelay(p Publisher) Option {
	return func(r *Router) {
		r.relay = p
	}
}

// Router delivers events to the live connections of a user or of every user.
//
// Delivery is best-effort: a user with no live connections is a silent no-op,
// nothing is queued and nothing is retried. The persisted entity is the record
// of truth; clients refetch it on reconnect.
type Router struct {
	dir     Directory
	emitter Emitter
	relay   Publisher
	logger  zerolog.Logger
}

// NewRouter returns a Router reading connections from dir and writing through emitter.
func NewRouter(dir Directory, emitter Emitter, opts ...Option) *Router {
	r := &Router{
		dir:     dir,
		emitter: emitter,
		logger:  logging.WithComponent("fanout"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver pushes event to every live connection of userID and returns how many
// connections accepted it. The handle set is looked up on every call.
func (r *Router) Deliver(userID, event string, payload interface{}) int {
	n := r.dispatch(r.dir.Lookup(userID), event, payload, scopeUser)

	if r.relay != nil {
		env, err := relay.NewDeliver(userID, event, payload)
		r.publish(env, err)
	}

	r.logger.Debug().Str("user_id", userID).Str("event", event).Int("handles", n).Msg("Delivered")
	return n
}

// Broadcast pushes event to every registered connection across all users.
func (r *Router) Broadcast(event string, payload interface{}) int {
	n := r.dispatch(r.dir.Handles(), event, payload, scopeBroadcast)

	if r.relay != nil {
		env, err := relay.NewBroadcast(event, payload)
		r.publish(env, err)
	}

	r.logger.Debug().Str("event", event).Int("handles", n).Msg("Broadcast")
	return n
}

// Apply dispatches an envelope received from a peer to local connections only.
// It never republishes.
func (r *Router) Apply(env relay.Envelope) int {
	switch env.Kind {
	case relay.KindDeliver:
		return r.dispatch(r.dir.Lookup(env.Target), env.Event, env.Payload, scopeUser)
	case relay.KindBroadcast:
		return r.dispatch(r.dir.Handles(), env.Event, env.Payload, scopeBroadcast)
	default:
		r.logger.Warn().Str("kind", env.Kind).Msg("Ignoring envelope of unknown kind")
		return 0
	}
}

// dispatch emits to each handle once. A failed handle does not affect the others.
func (r *Router) dispatch(handles []string, event string, payload interface{}, scope string) int {
	delivered := 0
	for _, handle := range handles {
		if err := r.emitter.EmitTo(handle, event, payload); err != nil {
			reason := dropReason(err)
			metrics.RecordDrop(event, reason)
			r.logger.Debug().Err(err).Str("handle", handle).Str("event", event).Str("reason", reason).Msg("Dropped")
			continue
		}
		delivered++
	}
	metrics.RecordDelivery(event, scope, delivered)
	return delivered
}

func (r *Router) publish(env relay.Envelope, err error) {
	if err == nil {
		err = r.relay.Publish(env)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("event", env.Event).Str("kind", env.Kind).Msg("Relay publish failed")
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, websocket.ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, websocket.ErrUnknownHandle):
		return "unknown_handle"
	default:
		return "emit_error"
	}
}
