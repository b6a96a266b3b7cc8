// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillLogger(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	var logger watermill.LoggerAdapter = NewWatermillLoggerWithLogger(zerolog.New(&buf))

	logger = logger.With(watermill.LogFields{"topic": "imconnect.fanout"})
	logger.Info("subscribed", watermill.LogFields{"node": "n1"})

	output := buf.String()
	if !strings.Contains(output, `"topic":"imconnect.fanout"`) {
		t.Errorf("expected With fields in output: %s", output)
	}
	if !strings.Contains(output, `"node":"n1"`) {
		t.Errorf("expected call fields in output: %s", output)
	}

	buf.Reset()
	logger.Error("publish failed", errors.New("nats down"), nil)
	if !strings.Contains(buf.String(), `"error":"nats down"`) {
		t.Errorf("expected error in output: %s", buf.String())
	}

	buf.Reset()
	logger.Debug("debug line", nil)
	logger.Trace("trace line", nil)
	if !strings.Contains(buf.String(), "debug line") || !strings.Contains(buf.String(), "trace line") {
		t.Errorf("expected debug and trace lines: %s", buf.String())
	}
}
