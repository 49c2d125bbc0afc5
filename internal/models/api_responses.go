// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "time"

// APIResponse is the envelope every local API endpoint returns.
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": {"connected": true},
//	  "metadata": {"timestamp": "2026-01-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the structured error body.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - NOT_LINKED: No account is linked
//   - NOT_FOUND: Resource doesn't exist
//   - ENGINE_ERROR: The sync engine rejected the request
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
