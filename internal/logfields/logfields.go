// Package logfields holds the structured-logging conventions shared by the
// server packages.
package logfields

import (
	"strings"

	"pkt.systems/pslog"
)

// SubsystemKey is the canonical key for subsystem tags.
const SubsystemKey = pslog.TrustedString("sys")

// Ensure returns l when non-nil, otherwise a disabled logger.
func Ensure(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return pslog.NoopLogger()
}

// WithSubsystem attaches a subsystem tag to every log entry.
func WithSubsystem(logger pslog.Logger, subsystem string) pslog.Logger {
	logger = Ensure(logger)
	subsystem = strings.Trim(subsystem, ". ")
	if subsystem == "" {
		return logger
	}
	return logger.With(SubsystemKey, subsystem)
}
