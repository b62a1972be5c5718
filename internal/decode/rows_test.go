package decode

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
)

func TestFirstOnEmptyNamesStep(t *testing.T) {
	_, err := Rows(nil).First(intent.G1aRead)
	if !errors.Is(err, api.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Step != string(intent.G1aRead) {
		t.Fatalf("expected step %q in error, got %#v", intent.G1aRead, err)
	}
}

func TestIntAcceptsNumericText(t *testing.T) {
	row := Row{"a": "42", "b": json.Number("7"), "c": float64(3), "d": int64(-1)}
	for key, want := range map[string]int64{"a": 42, "b": 7, "c": 3, "d": -1} {
		got, err := row.Int(intent.IMPRead, key)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", key, want, got)
		}
	}
}

func TestIntParseFailureIsDecodeError(t *testing.T) {
	row := Row{"a": "forty", "b": 1.5, "c": nil}
	for _, key := range []string{"a", "b", "c"} {
		_, err := row.Int(intent.IMPRead, key)
		if !errors.Is(err, api.ErrDecode) {
			t.Fatalf("%s: expected decode error, got %v", key, err)
		}
		if errors.Is(err, api.ErrEmptyResult) {
			t.Fatalf("%s: decode error must not match empty result", key)
		}
	}
	if _, err := row.Int(intent.IMPRead, "missing"); !errors.Is(err, api.ErrDecode) {
		t.Fatalf("expected decode error for missing field, got %v", err)
	}
}

func TestIntsChecksLengthAndOrder(t *testing.T) {
	row := Row{"versions": []any{"4", int64(3), json.Number("2"), float64(1)}}
	got, err := row.Ints(intent.OTVRead, "versions", 4)
	if err != nil {
		t.Fatalf("ints: %v", err)
	}
	if !reflect.DeepEqual(got, []any{int64(4), int64(3), int64(2), int64(1)}) {
		t.Fatalf("unexpected order %#v", got)
	}
	if _, err := row.Ints(intent.OTVRead, "versions", 3); !errors.Is(err, api.ErrDecode) {
		t.Fatalf("expected length mismatch decode error, got %v", err)
	}
}

func TestHistoryNormalizesEntries(t *testing.T) {
	got, err := History([]any{"0", "t1", int64(5)})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !reflect.DeepEqual(got, []any{int64(0), "t1", int64(5)}) {
		t.Fatalf("unexpected history %#v", got)
	}
	got, err = History("0,t1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !reflect.DeepEqual(got, []any{int64(0), "t1"}) {
		t.Fatalf("unexpected joined history %#v", got)
	}
	if _, err := History(42); err == nil {
		t.Fatalf("expected error for scalar history")
	}
}

func TestJoinHistoryAppends(t *testing.T) {
	if got := JoinHistory([]any{int64(0)}, "t1"); got != "0,t1" {
		t.Fatalf("unexpected join %q", got)
	}
	if got := JoinHistory(nil, "t1"); got != "t1" {
		t.Fatalf("unexpected join %q", got)
	}
}

func TestIntRejectsOutOfRangeFloats(t *testing.T) {
	for _, f := range []float64{1e19, -1e19, 9223372036854775807} {
		if _, err := Int(f); err == nil {
			t.Fatalf("%v: expected range error", f)
		}
	}
	if n, err := Int(float64(-9223372036854775808)); err != nil || n != -9223372036854775808 {
		t.Fatalf("min int64: %d %v", n, err)
	}
	got, err := History([]any{float64(1e19)})
	if err != nil || !reflect.DeepEqual(got, []any{"10000000000000000000"}) {
		t.Fatalf("expected out of range entry kept as text, got %#v (%v)", got, err)
	}
}

func TestHistoryTextRejectsSeparator(t *testing.T) {
	for in, want := range map[any]string{"t1": "t1", int64(4): "4", 7: "7"} {
		got, err := HistoryText(in)
		if err != nil || got != want {
			t.Fatalf("%v: got %q %v", in, got, err)
		}
	}
	for _, bad := range []any{"t1,t2", ",", true} {
		if _, err := HistoryText(bad); err == nil {
			t.Fatalf("%v: expected error", bad)
		}
	}
}
