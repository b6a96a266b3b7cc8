// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Presence registry size and identify outcomes
// - Fan-out deliveries and drops
// - WebSocket transport connections and frames
// - Message store latency and circuit breaker state
// - Cross-node relay traffic
// - HTTP API latency and throughput

var (
	// Presence Metrics
	PresenceOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Number of users with at least one live connection",
		},
	)

	PresenceRegisteredHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_registered_handles",
			Help: "Number of identified connection handles in the registry",
		},
	)

	PresenceIdentify = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_identify_total",
			Help: "Identify events by outcome",
		},
		[]string{"outcome"}, // "registered", "repeated", "rebound", "rejected"
	)

	// Fan-out Metrics
	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Events handed to a connection handle by the fan-out router",
		},
		[]string{"event", "scope"}, // scope: "user", "broadcast", "relay"
	)

	FanoutDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_dropped_total",
			Help: "Events dropped for a single handle",
		},
		[]string{"event", "reason"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"event"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Message Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_store_operation_duration_seconds",
			Help:    "Duration of message store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Relay Metrics
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Fan-out envelopes published to peer nodes",
		},
		[]string{"status"},
	)

	RelayReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_received_total",
			Help: "Fan-out envelopes received from the relay topic",
		},
		[]string{"outcome"}, // "applied", "own", "malformed"
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)
)

// SetPresence records the registry size after a mutation.
func SetPresence(users, handles int) {
	PresenceOnlineUsers.Set(float64(users))
	PresenceRegisteredHandles.Set(float64(handles))
}

// RecordIdentify records the outcome of an identify event.
func RecordIdentify(outcome string) {
	PresenceIdentify.WithLabelValues(outcome).Inc()
}

// RecordDelivery records n handles reached for event in the given scope.
func RecordDelivery(event, scope string, n int) {
	if n <= 0 {
		return
	}
	FanoutDeliveries.WithLabelValues(event, scope).Add(float64(n))
}

// RecordDrop records an event dropped for a single handle.
func RecordDrop(event, reason string) {
	FanoutDropped.WithLabelValues(event, reason).Inc()
}

// RecordStoreOperation records a message store call.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordBreakerState sets the circuit breaker gauge and counts the transition.
func RecordBreakerState(name, from, to string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordAPIRequest records an API request's latency and count.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	APIRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
