package svcfields

import "testing"

func TestSubsystemSkipsEmptyParts(t *testing.T) {
	cases := map[string][]string{
		"adapter.dgraph": {"adapter", "", ".dgraph."},
		"catalog":        {" catalog "},
		"":               {"", " . "},
	}
	for want, parts := range cases {
		if got := Subsystem(parts...); got != want {
			t.Fatalf("Subsystem(%q) = %q, want %q", parts, got, want)
		}
	}
}

func TestWithSubsystemToleratesNilLogger(t *testing.T) {
	if WithSubsystem(nil, "catalog") == nil {
		t.Fatalf("expected logger")
	}
	if WithBackend(nil, "") == nil {
		t.Fatalf("expected logger")
	}
}
