// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
Package metrics provides Prometheus metrics for the Cadence sync engine.

# Overview

The package provides metrics for:
  - Outbound transport latency, status classes and typed failures
  - Circuit breaker state transitions
  - Sync buffer enqueue, coalescing, flush and drop counts
  - Listen submissions, the retry buffer and retry scheduling
  - Inbound reconciliation and the realtime bridge
  - Connectivity and ping results
  - Engine task queues
  - The local API and the UI WebSocket hub

# Metrics Endpoint

Metrics are exposed by the local API at /metrics in Prometheus text format:

	curl http://127.0.0.1:7291/metrics

All metrics are registered on the default registry through promauto.
*/
package metrics
