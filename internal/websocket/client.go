// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package websocket

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	handle  string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	cfg     Config
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates a Client with a fresh uuid handle.
func NewClient(hub *Hub, conn *websocket.Conn, cfg Config) *Client {
	cfg = cfg.withDefaults()
	handle := uuid.NewString()

	limit := rate.Inf
	if cfg.EventRate > 0 {
		limit = rate.Limit(cfg.EventRate)
	}

	return &Client{
		handle:  handle,
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, cfg.SendBuffer),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.EventBurst),
		logger:  logging.WithHandle("websocket", handle),
	}
}

// Handle returns the connection handle.
func (c *Client) Handle() string {
	return c.handle
}

// readPump reads client frames and hands events to the hub's lifecycle.
// The read deadline covers one ping interval plus the ping timeout.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.stoppedChan():
		}
		_ = c.conn.Close() // best-effort cleanup
	}()

	readWait := c.cfg.PingInterval + c.cfg.PingTimeout

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				c.logger.Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		// Any inbound frame proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			metrics.WSErrors.WithLabelValues("malformed_frame").Inc()
			c.logger.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}

		if frame.Type == MessageTypePing {
			metrics.WSMessagesReceived.WithLabelValues(MessageTypePing).Inc()
			// Through the hub: send may already be closed by a shutdown.
			_ = c.hub.emit(c.handle, Message{Type: MessageTypePong})
			continue
		}

		if !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			c.logger.Debug().Str("event", frame.Type).Msg("inbound event rate exceeded, dropping")
			continue
		}

		if c.hub.lc != nil {
			c.hub.lc.received(c.handle, frame.Type, frame.Data)
		}
	}
}

// writePump writes queued messages and periodic pings. It owns all writes to conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				c.logger.Error().Err(err).Str("event", message.Type).Msg("failed to encode message, dropping")
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				c.logger.Debug().Err(err).Msg("failed to write message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
