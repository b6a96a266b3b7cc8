// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order. The first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/imconnect/config.yaml",
	"/etc/imconnect/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultOrigins are the web client origins allowed out of the box.
var DefaultOrigins = []string{
	"https://imconnect.netlify.app",
	"http://localhost:5173",
	"http://localhost:5174",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Transport: TransportConfig{
			Path:           "/ws",
			AllowedOrigins: append([]string(nil), DefaultOrigins...),
			PingInterval:   25 * time.Second,
			PingTimeout:    60 * time.Second,
			WriteWait:      10 * time.Second,
			MaxMessageSize: 512 * 1024,
			SendBuffer:     256,
			EventRate:      20,
			EventBurst:     40,
		},
		Store: StoreConfig{
			Path:            "/data/messages",
			InMemory:        false,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			GCInterval:      5 * time.Minute,
		},
		Relay: RelayConfig{
			Enabled:        false,
			Backend:        RelayBackendMemory,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			EmbeddedHost:   "127.0.0.1",
			EmbeddedPort:   4222,
			Topic:          "imconnect.fanout",
			NodeID:         "", // generated at startup when empty
		},
		Security: SecurityConfig{
			CORSOrigins:       append([]string(nil), DefaultOrigins...),
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with Koanf v2 using layered sources:
//  1. Defaults from defaultConfig
//  2. Optional YAML config file
//  3. Environment variables (explicitly mapped, see envTransformFunc)
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"transport.allowed_origins",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into the config.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"port":                  "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Transport
	"ws_path":             "transport.path",
	"ws_allowed_origins":  "transport.allowed_origins",
	"ws_ping_interval":    "transport.ping_interval",
	"ws_ping_timeout":     "transport.ping_timeout",
	"ws_write_wait":       "transport.write_wait",
	"ws_max_message_size": "transport.max_message_size",
	"ws_send_buffer":      "transport.send_buffer",
	"ws_event_rate":       "transport.event_rate",
	"ws_event_burst":      "transport.event_burst",

	// Store
	"store_path":             "store.path",
	"store_in_memory":        "store.in_memory",
	"store_breaker_failures": "store.breaker_failures",
	"store_breaker_timeout":  "store.breaker_timeout",
	"store_gc_interval":      "store.gc_interval",

	// Relay
	"relay_enabled": "relay.enabled",
	"relay_backend": "relay.backend",
	"relay_topic":   "relay.topic",
	"nats_url":      "relay.url",
	"nats_embedded": "relay.embedded_server",
	"nats_host":     "relay.embedded_host",
	"nats_port":     "relay.embedded_port",
	"node_id":       "relay.node_id",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - WS_ALLOWED_ORIGINS -> transport.allowed_origins
//   - NATS_URL -> relay.url
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
