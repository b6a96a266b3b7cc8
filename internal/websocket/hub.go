// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Built-in message types handled by the transport itself.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is an outbound frame: {"type": event, "data": payload}.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundFrame is a client frame. Data is kept raw for the event handlers.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// lifecycle receives hub events. connected and disconnected are called from the
// hub loop; received is called from the client's read goroutine.
type lifecycle interface {
	connected(handle string)
	disconnected(handle string)
	received(handle, event string, data []byte)
}

// Hub maintains the set of open clients keyed by handle.
//
// Register and Unregister are serialized through the Run loop, so connect and
// disconnect callbacks never run concurrently with each other. A client's pumps
// start only after its connect callbacks have returned.
type Hub struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	lc lifecycle

	// stopped is closed while no Run loop is active after a shutdown.
	stoppedMu sync.Mutex
	stopped   chan struct{}
}

func newHub(lc lifecycle) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		lc:         lc,
		stopped:    make(chan struct{}),
	}
}

// RunWithContext runs the hub until ctx is done, then closes every client,
// fires their disconnect callbacks and returns ctx.Err().
// It may be called again after returning, as a supervisor does on restart.
//
// Priority: shutdown first, then lifecycle events.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.stoppedMu.Lock()
	select {
	case <-h.stopped:
		h.stopped = make(chan struct{})
	default:
	}
	h.stoppedMu.Unlock()

	defer func() {
		h.stoppedMu.Lock()
		close(h.stopped)
		h.stoppedMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.handle] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Debug().Str("handle", client.handle).Int("total_clients", total).Msg("websocket client connected")

	if h.lc != nil {
		h.lc.connected(client.handle)
	}
	client.Start()
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.handle]
	if ok && current == client {
		delete(h.clients, client.handle)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok || current != client {
		return
	}

	metrics.WSConnections.Set(float64(total))
	logging.Debug().Str("handle", client.handle).Int("total_clients", total).Msg("websocket client disconnected")

	if h.lc != nil {
		h.lc.disconnected(client.handle)
	}
}

// stoppedChan returns a channel closed once the current Run loop has exited.
func (h *Hub) stoppedChan() <-chan struct{} {
	h.stoppedMu.Lock()
	defer h.stoppedMu.Unlock()
	return h.stopped
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err() is not
// logged as an error: cancellation is the expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every client in handle order and fires disconnect callbacks.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].handle < clients[j].handle
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client.handle)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)

	if h.lc != nil {
		for _, client := range clients {
			h.lc.disconnected(client.handle)
		}
	}
}

// emit queues msg on handle's send buffer without blocking.
func (h *Hub) emit(handle string, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handle]
	if !ok {
		return ErrUnknownHandle
	}

	select {
	case client.send <- msg:
		return nil
	default:
		metrics.WSErrors.WithLabelValues("buffer_full").Inc()
		return ErrSendBufferFull
	}
}

// GetClientCount returns the number of open clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handles returns the sorted handles of every open client.
func (h *Hub) Handles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handles := make([]string, 0, len(h.clients))
	for handle := range h.clients {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	return handles
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
