// Package decode holds the normalized shape every backend result is turned
// into before the scenario catalog looks at it.
package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
)

// Row is one decoded record. Values are int64, string, nil, or []any of
// those, in the order the backend traversed them.
type Row map[string]any

// Rows is a decoded result set in backend order.
type Rows []Row

// First returns the first row, or EmptyResult naming step.
func (r Rows) First(step intent.Step) (Row, error) {
	if len(r) == 0 {
		return nil, api.EmptyResult(string(step))
	}
	return r[0], nil
}

// Value returns key or a DecodeError when absent.
func (r Row) Value(step intent.Step, key string) (any, error) {
	v, ok := r[key]
	if !ok {
		return nil, api.DecodeError(string(step), "missing field %q", key)
	}
	return v, nil
}

// Int returns key as int64.
func (r Row) Int(step intent.Step, key string) (int64, error) {
	v, err := r.Value(step, key)
	if err != nil {
		return 0, err
	}
	n, err := Int(v)
	if err != nil {
		return 0, api.DecodeError(string(step), "field %q: %v", key, err)
	}
	return n, nil
}

// List returns key as a slice.
func (r Row) List(step intent.Step, key string) ([]any, error) {
	v, err := r.Value(step, key)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, api.DecodeError(string(step), "field %q: want list, got %T", key, v)
	}
	return list, nil
}

// Ints returns key as a list of integers of exactly n entries; n < 0 accepts
// any length.
func (r Row) Ints(step intent.Step, key string, n int) ([]any, error) {
	list, err := r.List(step, key)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(list) != n {
		return nil, api.DecodeError(string(step), "field %q: want %d entries, got %d", key, n, len(list))
	}
	out := make([]any, len(list))
	for i, v := range list {
		iv, err := Int(v)
		if err != nil {
			return nil, api.DecodeError(string(step), "field %q[%d]: %v", key, i, err)
		}
		out[i] = iv
	}
	return out, nil
}

// Int coerces a decoded scalar to int64. Integer-valued floats, json.Number
// and decimal strings are accepted; anything else is an error.
func Int(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("non-integer number %v", n)
		}
		if !inInt64Range(n) {
			return 0, fmt.Errorf("number %v out of int64 range", n)
		}
		return int64(n), nil
	case json.Number:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	case []byte:
		return parseInt(string(n))
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

// inInt64Range reports whether the integral n converts to int64 exactly.
// float64(math.MaxInt64) rounds up to 2^63, hence the strict bound.
func inInt64Range(n float64) bool {
	return n >= math.MinInt64 && n < math.MaxInt64
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", s, err)
	}
	return n, nil
}

// History normalizes a version history: entries that parse as integers become
// int64, everything else stays a string. The order of entries is kept.
func History(v any) ([]any, error) {
	switch h := v.(type) {
	case []any:
		out := make([]any, len(h))
		for i, e := range h {
			out[i] = historyEntry(e)
		}
		return out, nil
	case []string:
		out := make([]any, len(h))
		for i, e := range h {
			out[i] = historyEntry(e)
		}
		return out, nil
	case string:
		return SplitHistory(h), nil
	case nil:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("want history list, got %T", v)
	}
}

func historyEntry(e any) any {
	switch x := e.(type) {
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		return x.String()
	case []byte:
		return historyEntry(string(x))
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		if x == math.Trunc(x) && inInt64Range(x) {
			return int64(x)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return x
	}
}

// HistorySeparator joins history entries in stores that keep a history as a
// single text value.
const HistorySeparator = ","

// SplitHistory parses a joined history text.
func SplitHistory(s string) []any {
	if s == "" {
		return []any{}
	}
	parts := strings.Split(s, HistorySeparator)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = historyEntry(p)
	}
	return out
}

// HistoryText renders one history entry for a joined history. Entries that
// contain HistorySeparator are rejected since they would not split back.
func HistoryText(v any) (string, error) {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case int64:
		text = strconv.FormatInt(x, 10)
	default:
		n, err := Int(v)
		if err != nil {
			return "", fmt.Errorf("want string or integer, got %T", v)
		}
		text = strconv.FormatInt(n, 10)
	}
	if strings.Contains(text, HistorySeparator) {
		return "", fmt.Errorf("entry %q contains %q", text, HistorySeparator)
	}
	return text, nil
}

// JoinHistory renders history entries followed by next as a joined text.
func JoinHistory(history []any, next ...any) string {
	parts := make([]string, 0, len(history)+len(next))
	for _, e := range append(append([]any(nil), history...), next...) {
		switch x := e.(type) {
		case string:
			parts = append(parts, x)
		case int64:
			parts = append(parts, strconv.FormatInt(x, 10))
		default:
			parts = append(parts, fmt.Sprint(x))
		}
	}
	return strings.Join(parts, HistorySeparator)
}
