package api

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Parameter keys understood by the scenario catalog. The names are part of
// the orchestrator contract and must not change.
const (
	ParamPerson1ID     = "person1Id"
	ParamPerson2ID     = "person2Id"
	ParamPersonID      = "personId"
	ParamPostID        = "postId"
	ParamForumID       = "forumId"
	ParamTransactionID = "transactionId"
	ParamSince         = "since"
	ParamNewEmail      = "newEmail"
	ParamEven          = "even"
	ParamOdd           = "odd"
	ParamCycleSize     = "cycleSize"
	ParamSleepTime     = "sleepTime"
)

// Params carries the scenario parameters for one operation call. Values are
// primitives: strings, integers or time.Duration. A Params value must not be
// mutated while an operation is using it; use With to derive a new one.
type Params map[string]any

// Keys returns the parameter names in lexical order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Value returns the raw value stored under key.
func (p Params) Value(key string) (any, error) {
	v, ok := p[key]
	if !ok {
		return nil, ParamError(key, fmt.Errorf("missing"))
	}
	return v, nil
}

// Int returns key as an int64. Decimal strings are accepted.
func (p Params) Int(key string) (int64, error) {
	v, err := p.Value(key)
	if err != nil {
		return 0, err
	}
	n, ok := AsInt(v)
	if !ok {
		return 0, ParamError(key, fmt.Errorf("want integer, got %T", v))
	}
	return n, nil
}

// String returns key as text. Integers are formatted in base 10.
func (p Params) String(key string) (string, error) {
	v, err := p.Value(key)
	if err != nil {
		return "", err
	}
	s, ok := AsString(v)
	if !ok {
		return "", ParamError(key, fmt.Errorf("want string, got %T", v))
	}
	return s, nil
}

// Duration returns key as a time.Duration. Integers are milliseconds and
// strings use time.ParseDuration syntax (a bare number is milliseconds).
func (p Params) Duration(key string) (time.Duration, error) {
	v, err := p.Value(key)
	if err != nil {
		return 0, err
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, ParamError(key, err)
	}
	if d < 0 {
		return 0, ParamError(key, fmt.Errorf("negative duration %s", d))
	}
	return d, nil
}

// With returns a copy of p with the supplied key/value pairs set.
func (p Params) With(kv ...any) Params {
	out := make(Params, len(p)+len(kv)/2)
	maps.Copy(out, p)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

// Merge returns a copy of p where every entry of extra overrides p.
func (p Params) Merge(extra map[string]any) Params {
	out := make(Params, len(p)+len(extra))
	maps.Copy(out, p)
	maps.Copy(out, extra)
	return out
}

// AsInt coerces integer-like primitives, including decimal strings, to int64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case fmt.Stringer:
		return AsInt(n.String())
	default:
		return 0, false
	}
}

// AsString renders strings and integers as text.
func AsString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case time.Duration:
		return s.String(), true
	}
	if n, ok := AsInt(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func parseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		d = strings.TrimSpace(d)
		if ms, err := strconv.ParseInt(d, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", d, err)
		}
		return parsed, nil
	}
	if ms, ok := AsInt(v); ok {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("want duration, got %T", v)
}
