// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetPresence(t *testing.T) {
	SetPresence(3, 5)

	if got := testutil.ToFloat64(PresenceOnlineUsers); got != 3 {
		t.Errorf("presence_online_users = %v, want 3", got)
	}
	if got := testutil.ToFloat64(PresenceRegisteredHandles); got != 5 {
		t.Errorf("presence_registered_handles = %v, want 5", got)
	}
}

func TestRecordDelivery(t *testing.T) {
	c := FanoutDeliveries.WithLabelValues("newMessage", "user")
	before := testutil.ToFloat64(c)

	RecordDelivery("newMessage", "user", 2)
	RecordDelivery("newMessage", "user", 0)

	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("fanout_deliveries_total delta = %v, want 2", got)
	}
}

func TestRecordDrop(t *testing.T) {
	c := FanoutDropped.WithLabelValues("messageDeleted", "buffer_full")
	before := testutil.ToFloat64(c)

	RecordDrop("messageDeleted", "buffer_full")

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("fanout_dropped_total delta = %v, want 1", got)
	}
}

func TestRecordIdentify(t *testing.T) {
	c := PresenceIdentify.WithLabelValues("rejected")
	before := testutil.ToFloat64(c)

	RecordIdentify("rejected")

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("presence_identify_total delta = %v, want 1", got)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failure", errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Histogram observation; must not panic
			RecordStoreOperation("save", 3*time.Millisecond, tt.err)
		})
	}
}

func TestRecordBreakerState(t *testing.T) {
	RecordBreakerState("message-store", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("message-store")); got != 2 {
		t.Errorf("circuit_breaker_state = %v, want 2", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/api/v1/messages/send", "201")
	before := testutil.ToFloat64(c)

	RecordAPIRequest("POST", "/api/v1/messages/send", 201, 12*time.Millisecond)

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("api_active_requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("api_active_requests = %v, want %v", got, before)
	}
}
