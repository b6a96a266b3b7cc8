// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// Config configures the Transport.
type Config struct {
	// AllowedOrigins is matched exactly against the Origin header. "*" allows any
	// origin, including requests without one.
	AllowedOrigins []string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	EventRate      float64
	EventBurst     int
}

// DefaultConfig returns the keepalive and buffering defaults of the web client.
func DefaultConfig() Config {
	return Config{
		PingInterval:   25 * time.Second,
		PingTimeout:    60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512 * 1024,
		SendBuffer:     256,
		EventRate:      20,
		EventBurst:     40,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.EventBurst <= 0 {
		c.EventBurst = d.EventBurst
	}
	return c
}

// Transport is the push transport: it upgrades HTTP requests to websocket
// connections, assigns each one a handle and exposes connect, event and
// disconnect callbacks plus per-handle emission.
//
// Register callbacks before serving; callbacks added later only see later events.
type Transport struct {
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu            sync.RWMutex
	connectFns    []func(handle string)
	disconnectFns []func(handle string)
	eventFns      map[string][]func(handle string, payload []byte)
}

var (
	instanceMu sync.Mutex
	instance   *Transport
)

// Initialize returns the process-wide Transport, creating it on first use.
// The second return value reports whether this call created it; later calls
// return the existing instance and ignore cfg.
func Initialize(cfg Config) (*Transport, bool) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		instance.logger.Warn().Msg("Transport already initialized, returning existing instance")
		return instance, false
	}
	instance = NewTransport(cfg)
	return instance, true
}

// NewTransport returns an unshared Transport. Most callers want Initialize.
func NewTransport(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:      cfg,
		logger:   logging.WithComponent("websocket"),
		eventFns: make(map[string][]func(string, []byte)),
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.checkOrigin,
	}
	t.hub = newHub(t)
	return t
}

// Close releases the process-wide instance if t is it, so a later Initialize
// creates a new Transport. Open connections are closed by cancelling Run.
func (t *Transport) Close() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == t {
		instance = nil
	}
}

// OnConnect registers fn to run for every new connection, before its first event.
func (t *Transport) OnConnect(fn func(handle string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectFns = append(t.connectFns, fn)
}

// OnDisconnect registers fn to run once per closed connection.
func (t *Transport) OnDisconnect(fn func(handle string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectFns = append(t.disconnectFns, fn)
}

// OnEvent registers fn for client frames of type name. payload is the raw
// JSON of the frame's data field.
func (t *Transport) OnEvent(name string, fn func(handle string, payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventFns[name] = append(t.eventFns[name], fn)
}

// EmitTo queues event for one connection. It never blocks: a full buffer
// returns ErrSendBufferFull and the message is dropped.
func (t *Transport) EmitTo(handle, event string, payload interface{}) error {
	return t.hub.emit(handle, Message{Type: event, Data: payload})
}

// Run runs the hub until ctx is done. Cancelling ctx closes every connection.
func (t *Transport) Run(ctx context.Context) error {
	return t.hub.RunWithContext(ctx)
}

// Hub returns the underlying hub.
func (t *Transport) Hub() *Hub {
	return t.hub
}

// Connections returns the number of open connections.
func (t *Transport) Connections() int {
	return t.hub.GetClientCount()
}

// ServeHTTP upgrades the request and hands the connection to the hub.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		t.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(t.hub, conn, t.cfg)

	select {
	case t.hub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
	case <-t.hub.stoppedChan():
		_ = conn.Close()
	}
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range t.cfg.AllowedOrigins {
		if allowed == "*" || (origin != "" && allowed == origin) {
			return true
		}
	}
	metrics.WSErrors.WithLabelValues("origin_rejected").Inc()
	t.logger.Warn().Str("origin", origin).Str("remote_addr", r.RemoteAddr).Msg("websocket origin rejected")
	return false
}

func (t *Transport) connected(handle string) {
	t.mu.RLock()
	fns := t.connectFns
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(handle)
	}
}

func (t *Transport) disconnected(handle string) {
	t.mu.RLock()
	fns := t.disconnectFns
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(handle)
	}
}

func (t *Transport) received(handle, event string, data []byte) {
	t.mu.RLock()
	fns := t.eventFns[event]
	t.mu.RUnlock()

	if len(fns) == 0 {
		metrics.WSMessagesReceived.WithLabelValues("unhandled").Inc()
		t.logger.Debug().Str("handle", handle).Str("event", event).Msg("no handler for event")
		return
	}

	metrics.WSMessagesReceived.WithLabelValues(event).Inc()
	for _, fn := range fns {
		fn(handle, data)
	}
}
