// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed exchange with the service.
type Kind int

const (
	// Unexpected is a response with a status the caller did not expect and no better class.
	Unexpected Kind = iota
	// Timeout means the request did not complete within the client timeout.
	Timeout
	// Unreachable means no response was received: refused, reset, DNS, or the breaker is open.
	Unreachable
	// Canceled means the caller's context was canceled, e.g. by a delink.
	Canceled
	Unauthorized
	NotFound
	Conflict
	ServerError
	// Malformed means the response body could not be decoded.
	Malformed
)

var kindNames = map[Kind]string{
	Unexpected:   "unexpected",
	Timeout:      "timeout",
	Unreachable:  "unreachable",
	Canceled:     "canceled",
	Unauthorized: "unauthorized",
	NotFound:     "not_found",
	Conflict:     "conflict",
	ServerError:  "server_error",
	Malformed:    "malformed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure returned by Send.
type Error struct {
	Kind   Kind
	Op     string // "GET /me.json"
	Status int    // 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Status == 0 && t.Err == nil
}

// KindOf returns the kind of a transport error, or Unexpected with ok=false
// when err is not one.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return Unexpected, false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// IsTransportFailure reports whether err means the service could not be
// reached at all. These failures flip connectivity; status errors do not.
func IsTransportFailure(err error) bool {
	k, ok := KindOf(err)
	return ok && (k == Timeout || k == Unreachable)
}

// IsKind reports whether err is a transport error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// kindForStatus maps an unexpected HTTP status to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Unauthorized
	case status == http.StatusNotFound || status == http.StatusGone:
		return NotFound
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return Conflict
	case status >= 500:
		return ServerError
	default:
		return Unexpected
	}
}
