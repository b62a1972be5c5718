// Package svcfields holds the log field keys shared across isocheck.
package svcfields

import (
	"strings"

	"pkt.systems/pslog"
)

// SubsystemKey tags the component emitting an entry.
const SubsystemKey = pslog.TrustedString("sys")

// BackendKey tags the database an entry refers to.
const BackendKey = pslog.TrustedString("backend")

// Subsystem joins non-empty parts into a dotted path.
func Subsystem(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.Trim(part, ". "); part != "" {
			filtered = append(filtered, part)
		}
	}
	return strings.Join(filtered, ".")
}

// WithSubsystem attaches a subsystem tag to every log entry.
func WithSubsystem(logger pslog.Logger, parts ...string) pslog.Logger {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	sys := Subsystem(parts...)
	if sys == "" {
		return logger
	}
	return logger.With(SubsystemKey, sys)
}

// WithBackend attaches the backend name to every log entry.
func WithBackend(logger pslog.Logger, backend string) pslog.Logger {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	if backend == "" {
		return logger
	}
	return logger.With(BackendKey, backend)
}
