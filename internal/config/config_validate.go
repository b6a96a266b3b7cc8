// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %v", c.Server.ShutdownTimeout)
	}
	return nil
}

func (c *Config) validateTransport() error {
	t := c.Transport
	if !strings.HasPrefix(t.Path, "/") {
		return fmt.Errorf("WS_PATH must start with '/', got %q", t.Path)
	}
	if len(t.AllowedOrigins) == 0 {
		return fmt.Errorf("WS_ALLOWED_ORIGINS must list at least one origin (use '*' to allow any)")
	}
	for _, origin := range t.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("WS_ALLOWED_ORIGINS: %w", err)
		}
	}
	if t.PingInterval <= 0 {
		return fmt.Errorf("WS_PING_INTERVAL must be positive, got %v", t.PingInterval)
	}
	if t.PingTimeout <= 0 {
		return fmt.Errorf("WS_PING_TIMEOUT must be positive, got %v", t.PingTimeout)
	}
	if t.WriteWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT must be positive, got %v", t.WriteWait)
	}
	if t.MaxMessageSize < 1024 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1024 bytes, got %d", t.MaxMessageSize)
	}
	if t.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1, got %d", t.SendBuffer)
	}
	if t.EventRate <= 0 || t.EventBurst < 1 {
		return fmt.Errorf("WS_EVENT_RATE and WS_EVENT_BURST must be positive, got %v/%d", t.EventRate, t.EventBurst)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_IN_MEMORY=false")
	}
	if c.Store.BreakerFailures == 0 {
		return fmt.Errorf("STORE_BREAKER_FAILURES must be at least 1")
	}
	if c.Store.BreakerTimeout <= 0 {
		return fmt.Errorf("STORE_BREAKER_TIMEOUT must be positive, got %v", c.Store.BreakerTimeout)
	}
	if c.Store.GCInterval < time.Minute {
		return fmt.Errorf("STORE_GC_INTERVAL must be at least 1m, got %v", c.Store.GCInterval)
	}
	return nil
}

func (c *Config) validateRelay() error {
	if !c.Relay.Enabled {
		return nil
	}
	if c.Relay.Topic == "" {
		return fmt.Errorf("RELAY_TOPIC is required when RELAY_ENABLED=true")
	}

	switch c.Relay.Backend {
	case RelayBackendMemory:
		return nil
	case RelayBackendNATS:
		if c.Relay.EmbeddedServer {
			if c.Relay.EmbeddedPort < 1 || c.Relay.EmbeddedPort > 65535 {
				return fmt.Errorf("NATS_PORT must be between 1 and 65535, got %d", c.Relay.EmbeddedPort)
			}
			return nil
		}
		u, err := url.Parse(c.Relay.URL)
		if err != nil || u.Scheme != "nats" && u.Scheme != "tls" || u.Host == "" {
			return fmt.Errorf("NATS_URL must be a nats:// or tls:// URL, got %q", c.Relay.URL)
		}
		return nil
	default:
		return fmt.Errorf("RELAY_BACKEND must be %q or %q, got %q", RelayBackendMemory, RelayBackendNATS, c.Relay.Backend)
	}
}

func (c *Config) validateSecurity() error {
	for _, origin := range c.Security.CORSOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("CORS_ORIGINS: %w", err)
		}
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateOrigin accepts "*" or an absolute http(s) origin without a path.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("origin %q must be an http or https origin", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("origin %q must not contain a path", origin)
	}
	return nil
}

// HasWildcardCORS reports whether any HTTP or WebSocket allow-list contains "*".
func (c *Config) HasWildcardCORS() bool {
	for _, list := range [][]string{c.Security.CORSOrigins, c.Transport.AllowedOrigins} {
		for _, o := range list {
			if o == "*" {
				return true
			}
		}
	}
	return false
}
