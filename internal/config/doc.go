// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

// Package config loads and validates IMConnect configuration.
//
// Configuration is layered with Koanf v2. Later layers override earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml, /etc/imconnect/config.yaml
//  3. Environment variables, mapped explicitly (HTTP_PORT, WS_ALLOWED_ORIGINS, NATS_URL, ...)
//
// List values such as WS_ALLOWED_ORIGINS and CORS_ORIGINS accept comma-separated strings
// from the environment.
//
// Example config.yaml:
//
//	server:
//	  port: 5000
//	transport:
//	  allowed_origins: [https://imconnect.netlify.app]
//	  ping_interval: 25s
//	  ping_timeout: 60s
//	store:
//	  path: /data/messages
//	relay:
//	  enabled: true
//	  backend: nats
//	  url: nats://nats:4222
package config
