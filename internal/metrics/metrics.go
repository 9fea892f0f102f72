// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package metrics defines the Prometheus metrics exported on /metrics.
//
// Metrics are registered on the default registry at init through promauto.
// Callers use the Record* helpers rather than touching the vectors directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage gateway

	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reports_storage_query_duration_seconds",
			Help:    "Duration of storage gateway queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	StorageQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_storage_query_errors_total",
			Help: "Storage gateway failures by query and error class",
		},
		[]string{"query", "class"}, // class: connection, query
	)

	StorageConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reports_storage_connections_in_use",
			Help: "Connections currently held by the storage gateway",
		},
	)

	StorageConnectionFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_storage_connection_faults_total",
			Help: "Connection-level faults raised to fault handlers",
		},
	)

	// Data sources

	SourceEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_source_events_received_total",
			Help: "Events accepted into Filter by data source",
		},
		[]string{"source"},
	)

	SourceEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_source_events_dropped_total",
			Help: "Events dropped before Filter (decode or validation failures)",
		},
		[]string{"source", "reason"},
	)

	SourceBuffering = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reports_source_buffering",
			Help: "1 while the data source is in buffering mode",
		},
		[]string{"source"},
	)

	SourceBufferedEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reports_source_buffered_events",
			Help: "Events currently held in the data source buffer",
		},
		[]string{"source"},
	)

	SourceReplayedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_source_replayed_events_total",
			Help: "Buffered events re-submitted through Filter after an outage",
		},
		[]string{"source"},
	)

	SourceReplayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_source_replay_errors_total",
			Help: "Replayed events whose processing failed",
		},
		[]string{"source"},
	)

	// Reconnection controller

	ReconnectState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reports_reconnect_state",
			Help: "Controller state: 0 healthy, 1 outage buffering, 2 recovering, 3 failed terminal",
		},
	)

	ReconnectAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reports_reconnect_attempts",
			Help: "Consecutive failed reconnection probes in the current outage",
		},
	)

	ReconnectProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_reconnect_probes_total",
			Help: "Reconnection probes by result",
		},
		[]string{"result"}, // success, failure
	)

	StorageOutages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_storage_outages_total",
			Help: "Storage outages entered by the reconnection controller",
		},
	)

	// Outbound replies

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_replies_total",
			Help: "Outbound replies by outcome",
		},
		[]string{"outcome"}, // sent, blacklisted, test_mode, failed
	)

	NotifyCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reports_notify_circuit_breaker_state",
			Help: "Outbound channel breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	// Messaging

	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_nats_messages_published_total",
			Help: "Messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_nats_messages_consumed_total",
			Help: "Messages consumed from NATS",
		},
	)

	// HTTP

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reports_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reports_api_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)
)

// RecordStorageQuery records one gateway call. class is empty on success.
func RecordStorageQuery(query string, duration time.Duration, class string) {
	if query == "" {
		query = "unnamed"
	}
	StorageQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
	if class != "" {
		StorageQueryErrors.WithLabelValues(query, class).Inc()
	}
}

// TrackStorageConnection moves the in-use gauge on acquire and release.
func TrackStorageConnection(acquired bool) {
	if acquired {
		StorageConnectionsInUse.Inc()
	} else {
		StorageConnectionsInUse.Dec()
	}
}

// RecordConnectionFault counts one fault notification.
func RecordConnectionFault() {
	StorageConnectionFaults.Inc()
}

// RecordEventReceived counts an event entering Filter.
func RecordEventReceived(source string) {
	SourceEventsReceived.WithLabelValues(source).Inc()
}

// RecordEventDropped counts an event rejected before Filter.
func RecordEventDropped(source, reason string) {
	SourceEventsDropped.WithLabelValues(source, reason).Inc()
}

// SetBuffering records the buffering mode and buffer depth of a source.
func SetBuffering(source string, buffering bool, depth int) {
	v := 0.0
	if buffering {
		v = 1
	}
	SourceBuffering.WithLabelValues(source).Set(v)
	SourceBufferedEvents.WithLabelValues(source).Set(float64(depth))
}

// RecordReplay records the outcome of a drained buffer.
func RecordReplay(source string, replayed, failed int) {
	SourceReplayedEvents.WithLabelValues(source).Add(float64(replayed))
	if failed > 0 {
		SourceReplayErrors.WithLabelValues(source).Add(float64(failed))
	}
}

// SetReconnectState records the controller state and attempt counter.
func SetReconnectState(state, attempts int) {
	ReconnectState.Set(float64(state))
	ReconnectAttempts.Set(float64(attempts))
}

// RecordProbe counts a reconnection probe.
func RecordProbe(success bool) {
	if success {
		ReconnectProbes.WithLabelValues("success").Inc()
	} else {
		ReconnectProbes.WithLabelValues("failure").Inc()
	}
}

// RecordOutage counts an outage entered.
func RecordOutage() {
	StorageOutages.Inc()
}

// RecordReply counts an outbound reply outcome.
func RecordReply(outcome string) {
	RepliesTotal.WithLabelValues(outcome).Inc()
}

// SetBreakerState records a breaker state (0 closed, 1 half-open, 2 open).
func SetBreakerState(name string, state int) {
	NotifyCircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordNATSPublish counts a published message.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume counts a consumed message.
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
