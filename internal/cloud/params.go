// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// singular turns a resource collection name into its parameter namespace.
func singular(objectType string) string {
	return strings.TrimSuffix(objectType, "s")
}

// encodeParams splits params into the query string and the JSON body.
// Scalars go in the query as resource[key]=value. Maps and lists go in the
// body under {resource: {...}}. The body is nil when there is nothing nested.
func encodeParams(resource string, params map[string]any) (url.Values, any) {
	q := url.Values{}
	var nested map[string]any

	for k, v := range params {
		switch v.(type) {
		case map[string]any, []any, []map[string]any, []string:
			if nested == nil {
				nested = make(map[string]any)
			}
			nested[k] = v
		default:
			q.Set(resource+"["+k+"]", formatScalar(v))
		}
	}

	if nested == nil {
		return q, nil
	}
	return q, map[string]any{resource: nested}
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return strconv.FormatInt(t.Unix(), 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// mergeParams merges src into dst. Nested maps merge recursively, lists
// concatenate and scalars overwrite.
func mergeParams(dst, src map[string]any) {
	for k, sv := range src {
		dv, exists := dst[k]
		if !exists {
			dst[k] = cloneValue(sv)
			continue
		}
		switch d := dv.(type) {
		case map[string]any:
			if s, ok := sv.(map[string]any); ok {
				mergeParams(d, s)
				continue
			}
		case []any:
			if s, ok := sv.([]any); ok {
				dst[k] = append(d, cloneValue(s).([]any)...)
				continue
			}
		}
		dst[k] = cloneValue(sv)
	}
}

// cloneParams deep-copies a parameter map.
func cloneParams(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	return cloneValue(p).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// asBool reads a loosely typed boolean from a decoded JSON patch.
func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("not a boolean: %T", v)
}

// asFloat reads a loosely typed number.
func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// asInt64 reads a loosely typed id.
func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("not an id: %T", v)
}

// asString reads a loosely typed string.
func asString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("not a string: %T", v)
}
