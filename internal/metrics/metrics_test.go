// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   string
	}{
		{0, "none"},
		{-1, "none"},
		{200, "2xx"},
		{204, "2xx"},
		{404, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRecordSyncResult(t *testing.T) {
	sentBefore := testutil.ToFloat64(SyncOperationsSent.WithLabelValues("update", "metrics_test"))
	droppedBefore := testutil.ToFloat64(SyncOperationsDropped.WithLabelValues("update", "metrics_test"))

	RecordSyncResult("update", "metrics_test", nil)
	RecordSyncResult("update", "metrics_test", errors.New("boom"))
	RecordSyncResult("update", "metrics_test", errors.New("boom"))

	if got := testutil.ToFloat64(SyncOperationsSent.WithLabelValues("update", "metrics_test")) - sentBefore; got != 1 {
		t.Errorf("sent delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SyncOperationsDropped.WithLabelValues("update", "metrics_test")) - droppedBefore; got != 2 {
		t.Errorf("dropped delta = %v, want 2", got)
	}
}

func TestRecordListen(t *testing.T) {
	before := testutil.ToFloat64(ListenRequests.WithLabelValues("end", "buffered"))
	RecordListen("end", true)
	if got := testutil.ToFloat64(ListenRequests.WithLabelValues("end", "buffered")) - before; got != 1 {
		t.Errorf("buffered delta = %v, want 1", got)
	}
}

func TestSetConnected(t *testing.T) {
	SetConnected(true)
	if got := testutil.ToFloat64(Connected); got != 1 {
		t.Errorf("Connected = %v, want 1", got)
	}
	SetConnected(false)
	if got := testutil.ToFloat64(Connected); got != 0 {
		t.Errorf("Connected = %v, want 0", got)
	}
}

func TestRecordTransportRequest(t *testing.T) {
	before := testutil.ToFloat64(TransportRequestsTotal.WithLabelValues("PATCH", "4xx"))
	RecordTransportRequest("PATCH", 409, 10*time.Millisecond)
	if got := testutil.ToFloat64(TransportRequestsTotal.WithLabelValues("PATCH", "4xx")) - before; got != 1 {
		t.Errorf("request delta = %v, want 1", got)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	RecordBreakerTransition("metrics-test", "closed", "open", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("metrics-test")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}
