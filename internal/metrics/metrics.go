// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport Metrics
	TransportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_transport_requests_total",
			Help: "Total number of requests sent to the cloud service",
		},
		[]string{"method", "status_class"}, // status_class: "2xx", "4xx", "5xx", "none"
	)

	TransportRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_transport_request_duration_seconds",
			Help:    "Cloud service request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	TransportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_transport_errors_total",
			Help: "Total number of typed transport errors",
		},
		[]string{"kind"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadence_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync Buffer Metrics
	SyncOperationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_sync_operations_enqueued_total",
			Help: "Total number of operations added to the sync buffer",
		},
		[]string{"command", "object_type"},
	)

	SyncOperationsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_sync_operations_coalesced_total",
			Help: "Total number of update operations merged into a pending one",
		},
	)

	SyncOperationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_sync_operations_sent_total",
			Help: "Total number of sync operations acknowledged by the service",
		},
		[]string{"command", "object_type"},
	)

	SyncOperationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_sync_operations_dropped_total",
			Help: "Total number of sync operations dropped after a failed send",
		},
		[]string{"command", "object_type"},
	)

	SyncBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_sync_buffer_size",
			Help: "Current number of pending operations in the sync buffer",
		},
	)

	SyncFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_sync_flushes_total",
			Help: "Total number of sync buffer flushes",
		},
	)

	// Listen Metrics
	ListenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_listen_requests_total",
			Help: "Total number of listen submissions",
		},
		[]string{"action", "result"}, // action: start/update/end/delete; result: success/buffered
	)

	ListenBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_listen_buffer_size",
			Help: "Current number of listen requests waiting for retry",
		},
	)

	ListenRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_listen_retries_total",
			Help: "Total number of listen retry attempts",
		},
		[]string{"result"}, // success, failure
	)

	ListenRetryStep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_listen_retry_step",
			Help: "Current listen retry step (-1 when no retry is scheduled)",
		},
	)

	// Reconciler Metrics
	ReconcilerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_reconciler_events_total",
			Help: "Total number of inbound object events applied",
		},
		[]string{"event", "object_type"},
	)

	PlaylistMergeChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_playlist_merge_changes_total",
			Help: "Total number of track changes produced by playlist merges",
		},
		[]string{"change"}, // added_local, removed_local, queued_upload
	)

	// Bridge Metrics
	BridgeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_bridge_events_total",
			Help: "Total number of inbound bridge callbacks received",
		},
		[]string{"event"},
	)

	BridgeDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_bridge_dispatched_total",
			Help: "Total number of buffered bridge events dispatched after coalescing",
		},
	)

	// Realtime Metrics
	RealtimeFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_realtime_frames_total",
			Help: "Total number of realtime frames received",
		},
		[]string{"event"},
	)

	RealtimeReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_realtime_reconnects_total",
			Help: "Total number of realtime reconnect attempts",
		},
	)

	// Connectivity Metrics
	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_connected",
			Help: "Whether the engine considers the service reachable (1) or not (0)",
		},
	)

	Pings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_pings_total",
			Help: "Total number of connectivity pings",
		},
		[]string{"result"},
	)

	// Task Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadence_queue_depth",
			Help: "Current number of tasks waiting in an engine queue",
		},
		[]string{"queue"},
	)

	TaskPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_task_panics_total",
			Help: "Total number of recovered panics in engine tasks",
		},
		[]string{"queue"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_api_active_requests",
			Help: "Current number of active local API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_websocket_connections",
			Help: "Current number of UI WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_websocket_messages_sent_total",
			Help: "Total number of UI notifications sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_websocket_errors_total",
			Help: "Total number of UI WebSocket errors",
		},
		[]string{"error_type"},
	)
)

// StatusClass buckets an HTTP status for labels. 0 means no response.
func StatusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordTransportRequest records one outbound request.
func RecordTransportRequest(method string, status int, duration time.Duration) {
	TransportRequestsTotal.WithLabelValues(method, StatusClass(status)).Inc()
	TransportRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTransportError records a typed transport failure.
func RecordTransportError(kind string) {
	TransportErrors.WithLabelValues(kind).Inc()
}

// RecordBreakerTransition records a breaker state change and updates the gauge.
func RecordBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
}

// RecordSyncResult records the outcome of sending one sync operation.
func RecordSyncResult(command, objectType string, err error) {
	if err != nil {
		SyncOperationsDropped.WithLabelValues(command, objectType).Inc()
		return
	}
	SyncOperationsSent.WithLabelValues(command, objectType).Inc()
}

// RecordListen records one listen submission.
func RecordListen(action string, buffered bool) {
	result := "success"
	if buffered {
		result = "buffered"
	}
	ListenRequests.WithLabelValues(action, result).Inc()
}

// RecordListenRetry records one retried buffer entry.
func RecordListenRetry(success bool) {
	if success {
		ListenRetries.WithLabelValues("success").Inc()
	} else {
		ListenRetries.WithLabelValues("failure").Inc()
	}
}

// RecordPing records a ping attempt.
func RecordPing(success bool) {
	if success {
		Pings.WithLabelValues("success").Inc()
	} else {
		Pings.WithLabelValues("failure").Inc()
	}
}

// SetConnected updates the connectivity gauge.
func SetConnected(connected bool) {
	if connected {
		Connected.Set(1)
	} else {
		Connected.Set(0)
	}
}

// RecordAPIRequest records a local API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
