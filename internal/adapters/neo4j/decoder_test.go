package neo4j

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
)

func TestDecodeRecordsKeepsAliases(t *testing.T) {
	rows, err := Decoders().Decode(intent.G0Check, Records{{
		Keys:   []string{"p1VersionHistory", "kVersionHistory", "p2VersionHistory"},
		Values: []any{[]any{int64(0), int64(1)}, []any{int64(0), int64(1)}, []any{int64(0)}},
	}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0][intent.KeyP2VersionHistory], []any{int64(0)}) {
		t.Fatalf("unexpected row %#v", rows[0])
	}
}

func TestDecodeNoRecordsIsEmpty(t *testing.T) {
	rows, err := Decoders().Decode(intent.WSViolations, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows, got %v (%v)", rows, err)
	}
}

func TestTextHistoriesNormalizeToMixedEntries(t *testing.T) {
	rows, err := Decoders().Decode(intent.G0Check, Records{{
		Keys:   []string{"p1VersionHistory", "kVersionHistory", "p2VersionHistory"},
		Values: []any{[]any{"0", "t1"}, []any{"0", "t1"}, []any{"0", "t1", "3"}},
	}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := decode.History(rows[0][intent.KeyP2VersionHistory])
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if want := []any{int64(0), "t1", int64(3)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestMissingForumYieldsEmptyResult(t *testing.T) {
	rows, err := Decoders().Decode(intent.WSModerators, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := rows.First(intent.WSModerators); !errors.Is(err, api.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestDecodeMismatchedRecord(t *testing.T) {
	_, err := Decoders().Decode(intent.IMPRead, Records{{Keys: []string{"version"}}})
	if !errors.Is(err, api.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestWritesDecodeToNothing(t *testing.T) {
	rows, err := Decoders().Decode(intent.G1aWrite, Records{{Keys: []string{"x"}, Values: []any{int64(1)}}})
	if err != nil || rows != nil {
		t.Fatalf("expected nil rows for a write, got %v (%v)", rows, err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.DeadlockDetected"}, api.ErrCommit},
		{fmt.Errorf("run: %w", &neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.LockClientStopped"}), api.ErrCommit},
		{&neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError"}, api.ErrQuery},
		{&neo4j.ConnectivityError{Inner: errors.New("connection refused")}, api.ErrConnection},
		{context.DeadlineExceeded, api.ErrConnection},
		{errors.New("boom"), api.ErrQuery},
	}
	for _, tc := range cases {
		got := classify(tc.err, api.ErrQuery)
		if !errors.Is(got, tc.want) {
			t.Errorf("classify(%v): expected %v, got %v", tc.err, tc.want, got)
		}
	}
}
