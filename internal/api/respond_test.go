// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\there", `tab\x09here`},
		{"del\x7f", `del\x7f`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRequestMessages(t *testing.T) {
	t.Parallel()

	type sample struct {
		Name  string   `json:"name" validate:"required,max=3"`
		Kind  string   `json:"kind" validate:"oneof=a b"`
		Paths []string `json:"paths" validate:"min=1"`
	}

	apiErr := validateRequest(&sample{Name: "toolong", Kind: "c"})
	if apiErr == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"name must be at most 3 characters", "kind must be one of: a b", "paths must be at least 1 items"} {
		if !strings.Contains(apiErr.Message, want) {
			t.Errorf("message %q lacks %q", apiErr.Message, want)
		}
	}
	if fields, ok := apiErr.Details["fields"].([]map[string]any); !ok || len(fields) != 3 {
		t.Errorf("details = %+v", apiErr.Details)
	}

	if err := validateRequest(&sample{Name: "ok", Kind: "a", Paths: []string{"/x"}}); err != nil {
		t.Errorf("valid request rejected: %+v", err)
	}
}

func TestDecodeJSONRejectsLargeBody(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	body := `{"token":"` + strings.Repeat("a", maxBodyBytes) + `","secret":"s"}`
	expectErrorCode(t, env.do(t, http.MethodPost, "/api/v1/link", body), http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE")
}
