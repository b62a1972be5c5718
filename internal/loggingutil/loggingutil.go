// Package loggingutil provides pslog helpers shared by the isocheck packages.
package loggingutil

import (
	"io"
	"os"
	"sync"

	"pkt.systems/pslog"
)

// EnvPrefix is the environment prefix read by FromEnv (ISOCHECK_LOG_LEVEL,
// ISOCHECK_LOG_MODE, ...).
const EnvPrefix = "ISOCHECK_LOG_"

var (
	noOnce   sync.Once
	noLogger pslog.Logger
)

// NoopLogger returns a disabled pslog.Logger that discards all entries.
func NoopLogger() pslog.Logger {
	noOnce.Do(func() {
		noLogger = pslog.NewWithOptions(io.Discard, pslog.Options{
			Mode:     pslog.ModeStructured,
			MinLevel: pslog.Disabled,
		})
	})
	return noLogger
}

// EnsureLogger returns l when non-nil, otherwise a disabled logger.
func EnsureLogger(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return NoopLogger()
}

// FromEnv builds the process logger: structured output on stderr at info
// level unless the ISOCHECK_LOG_* variables say otherwise.
func FromEnv(app string) pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvPrefix(EnvPrefix),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", app)
}
