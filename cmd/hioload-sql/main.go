// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Command hioload-sql runs the table query server and a matching client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-sql/internal/logfields"
	"pkt.systems/pslog"
)

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("HIOLOAD_SQL_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "hioload-sql")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(logger)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logfields.WithSubsystem(logger, "cli.root").Error("command failed", "error", err)
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}
