package logfields

import (
	"bytes"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func TestWithSubsystemTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	base := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:             pslog.ModeStructured,
		DisableTimestamp: true,
		NoColor:          true,
		MinLevel:         pslog.DebugLevel,
	})
	WithSubsystem(base, "server.loop.").Info("server.started")
	out := buf.String()
	if !strings.Contains(out, "server.loop") || !strings.Contains(out, "server.started") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestEnsureNeverReturnsNil(t *testing.T) {
	if Ensure(nil) == nil {
		t.Fatal("Ensure(nil) returned nil")
	}
	WithSubsystem(nil, "x").Info("discarded")
}
