package version

import (
	"runtime/debug"
	"testing"
)

func TestPseudoVersion(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
		{Key: "vcs.modified", Value: "true"},
	}
	if got := pseudoVersion(settings); got != "v0.0.0-20260304050607-0123456789ab+dirty" {
		t.Fatalf("unexpected pseudo version %q", got)
	}
	if got := pseudoVersion(settings[:1]); got != "" {
		t.Fatalf("expected empty version without vcs.time, got %q", got)
	}
}

func TestCurrentPrefersBuildVersion(t *testing.T) {
	prev := buildVersion
	t.Cleanup(func() { buildVersion = prev })
	buildVersion = "v1.2.3"
	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected ldflags version, got %q", got)
	}
	if info := Get(); info.Version != "v1.2.3" || info.Go == "" || info.Module == "" {
		t.Fatalf("unexpected info %+v", info)
	}
}
