package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("conflict on person 1")
	err := WithOp("g0", Wrap(ErrCommit, "g0.append", cause))
	if !errors.Is(err, ErrCommit) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to match, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Op != "g0" || apiErr.Step != "g0.append" {
		t.Fatalf("unexpected error context %+v", apiErr)
	}
	if got := err.Error(); got != "isocheck: commit rejected op=g0 step=g0.append: conflict on person 1" {
		t.Fatalf("unexpected message %q", got)
	}
	if !Rejected(err) || KindOf(err) != "commit" {
		t.Fatalf("expected a commit rejection, got kind %q", KindOf(err))
	}
}

func TestWithOpKeepsIntermediateContext(t *testing.T) {
	inner := Wrap(ErrCommit, "commit", errors.New("deadline exceeded"))
	err := WithOp("otv1", fmt.Errorf("round %d personId=%d: %w", 0, 3, inner))
	if !errors.Is(err, ErrCommit) || KindOf(err) != "commit" {
		t.Fatalf("expected commit kind, got %v", err)
	}
	want := "isocheck: op=otv1: round 0 personId=3: isocheck: commit rejected step=commit: deadline exceeded"
	if got := err.Error(); got != want {
		t.Fatalf("unexpected message:\n got %q\nwant %q", got, want)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Op != "otv1" || apiErr.Step != "commit" {
		t.Fatalf("unexpected error context %+v", apiErr)
	}
}

func TestWrapFillsStepThroughWrappers(t *testing.T) {
	inner := &Error{Kind: ErrConnection, Err: errors.New("eof")}
	err := Wrap(ErrQuery, "reset", fmt.Errorf("drop all: %w", inner))
	if !errors.Is(err, ErrConnection) || errors.Is(err, ErrQuery) {
		t.Fatalf("expected connection kind only, got %v", err)
	}
	if got := err.Error(); got != "isocheck: step=reset: drop all: isocheck: backend unreachable: eof" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := EmptyResult("g1a.lookup")
	err := Wrap(ErrQuery, "other", inner)
	if !errors.Is(err, ErrEmptyResult) || errors.Is(err, ErrQuery) {
		t.Fatalf("expected original kind to win, got %v", err)
	}
	if Wrap(ErrQuery, "x", nil) != nil || WithOp("x", nil) != nil {
		t.Fatalf("nil errors must stay nil")
	}
}

func TestKindOf(t *testing.T) {
	cases := map[error]string{
		nil:                                    "ok",
		ParamError("k", errors.New("missing")): "param",
		DecodeError("s", "bad %d", 1):          "decode",
		&Error{Kind: ErrConnection}:            "connection",
		&Error{Kind: ErrTxnDone}:               "txn_done",
		errors.New("plain"):                    "unknown",
	}
	for err, want := range cases {
		if got := KindOf(err); got != want {
			t.Fatalf("KindOf(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestParamsCoercion(t *testing.T) {
	p := Params{
		ParamPersonID:  "42",
		ParamForumID:   int32(3),
		ParamSince:     json.Number("2020"),
		ParamNewEmail:  "a@b",
		ParamSleepTime: "250ms",
		ParamEven:      true,
	}
	if n, err := p.Int(ParamPersonID); err != nil || n != 42 {
		t.Fatalf("personId: %d %v", n, err)
	}
	if n, err := p.Int(ParamForumID); err != nil || n != 3 {
		t.Fatalf("forumId: %d %v", n, err)
	}
	if n, err := p.Int(ParamSince); err != nil || n != 2020 {
		t.Fatalf("since: %d %v", n, err)
	}
	if s, err := p.String(ParamForumID); err != nil || s != "3" {
		t.Fatalf("forumId as string: %q %v", s, err)
	}
	if d, err := p.Duration(ParamSleepTime); err != nil || d != 250*time.Millisecond {
		t.Fatalf("sleepTime: %v %v", d, err)
	}
	if _, err := p.Int(ParamEven); !errors.Is(err, ErrParam) {
		t.Fatalf("expected param error for bool, got %v", err)
	}
	if _, err := p.Int(ParamOdd); !errors.Is(err, ErrParam) || !strings.Contains(err.Error(), ParamOdd) {
		t.Fatalf("expected missing odd, got %v", err)
	}
}

func TestParamsDuration(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
	}{
		{int64(15), 15 * time.Millisecond},
		{"40", 40 * time.Millisecond},
		{"1.5s", 1500 * time.Millisecond},
		{2 * time.Second, 2 * time.Second},
	}
	for _, tc := range cases {
		got, err := Params{ParamSleepTime: tc.in}.Duration(ParamSleepTime)
		if err != nil || got != tc.want {
			t.Fatalf("%v: got %v %v want %v", tc.in, got, err, tc.want)
		}
	}
	for _, bad := range []any{"-5ms", int64(-1), "soon"} {
		if _, err := (Params{ParamSleepTime: bad}).Duration(ParamSleepTime); !errors.Is(err, ErrParam) {
			t.Fatalf("%v: expected param error, got %v", bad, err)
		}
	}
}

func TestParamsWithAndMergeCopy(t *testing.T) {
	base := Params{ParamPersonID: 1}
	derived := base.With(ParamPostID, 2, 99, "ignored")
	merged := base.Merge(map[string]any{ParamPersonID: 5})
	if base.Has(ParamPostID) || base[ParamPersonID] != 1 {
		t.Fatalf("base mutated: %v", base)
	}
	if derived[ParamPostID] != 2 || len(derived) != 2 {
		t.Fatalf("unexpected derived %v", derived)
	}
	if merged[ParamPersonID] != 5 {
		t.Fatalf("unexpected merged %v", merged)
	}
	if keys := (Params{"b": 1, "a": 2}).Keys(); strings.Join(keys, ",") != "a,b" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
