// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables (in that order of precedence, lowest first).
//
// Sections:
//   - Server: HTTP listener and timeouts
//   - Transport: WebSocket endpoint, origin allow-list, keepalive and buffering
//   - Store: badger message store and its circuit breaker
//   - Relay: optional cross-node fan-out over watermill (in-memory or NATS)
//   - Security: HTTP CORS and rate limiting
//   - Logging: level, format, caller
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Transport TransportConfig `koanf:"transport"`
	Store     StoreConfig     `koanf:"store"`
	Relay     RelayConfig     `koanf:"relay"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TransportConfig holds WebSocket transport settings.
//
// PingInterval and PingTimeout follow the keepalive model of the web client:
// the server pings every PingInterval and drops the connection when no pong
// arrives within PingTimeout after that.
type TransportConfig struct {
	Path           string        `koanf:"path"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	PingTimeout    time.Duration `koanf:"ping_timeout"`
	WriteWait      time.Duration `koanf:"write_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`
	EventRate      float64       `koanf:"event_rate"`  // inbound events per second per connection
	EventBurst     int           `koanf:"event_burst"` // inbound burst per connection
}

// StoreConfig holds message store settings.
type StoreConfig struct {
	Path            string        `koanf:"path"`
	InMemory        bool          `koanf:"in_memory"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	GCInterval      time.Duration `koanf:"gc_interval"`
}

// RelayConfig holds cross-node fan-out settings.
type RelayConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Backend        string `koanf:"backend"` // memory or nats
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedHost   string `koanf:"embedded_host"`
	EmbeddedPort   int    `koanf:"embedded_port"`
	Topic          string `koanf:"topic"`
	NodeID         string `koanf:"node_id"`
}

// SecurityConfig holds HTTP CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Relay backends.
const (
	RelayBackendMemory = "memory"
	RelayBackendNATS   = "nats"
)

// Load reads configuration from defaults, the optional config file and the environment.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
func Load() (*Config, error) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
