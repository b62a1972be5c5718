// Package version reports the build identity of the isocheck binary.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/isocheck"

// buildVersion is set via -ldflags "-X pkt.systems/isocheck/internal/version.buildVersion=...".
var buildVersion = ""

// Info is the build identity printed by `isocheck version`.
type Info struct {
	Module  string `json:"module" yaml:"module"`
	Version string `json:"version" yaml:"version"`
	Go      string `json:"go" yaml:"go"`
}

// Get returns the identity of the running binary.
func Get() Info {
	return Info{Module: Module(), Version: Current(), Go: runtime.Version()}
}

// Current returns the ldflags version, the module version, or a pseudo
// version derived from VCS stamps, in that order.
func Current() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			return v
		}
		if v := pseudoVersion(info.Settings); v != "" {
			return v
		}
	}
	return "v0.0.0-unknown"
}

// Module returns the main module path.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if p := strings.TrimSpace(info.Main.Path); p != "" {
			return p
		}
	}
	return defaultModule
}

func pseudoVersion(settings []debug.BuildSetting) string {
	stamps := make(map[string]string, len(settings))
	for _, s := range settings {
		stamps[s.Key] = s.Value
	}
	revision, stamp := stamps["vcs.revision"], stamps["vcs.time"]
	if revision == "" || stamp == "" {
		return ""
	}
	when, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	v := "v0.0.0-" + when.UTC().Format("20060102150405") + "-" + revision
	if stamps["vcs.modified"] == "true" {
		v += "+dirty"
	}
	return v
}
