// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/momentics/hioload-sql/control"
	"github.com/momentics/hioload-sql/internal/logfields"
	"github.com/momentics/hioload-sql/query"
	"github.com/momentics/hioload-sql/server"
	"github.com/momentics/hioload-sql/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"
)

var serveKeys = []string{
	"listen", "backlog", "poll-timeout", "read-chunk", "max-request",
	"multiplexer", "strict", "handler-timeout", "cpu", "db", "metrics-listen",
}

func newServeCommand(v *viper.Viper, logger pslog.Logger) *cobra.Command {
	def := server.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := serverConfig(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), v, cfg, logger)
		},
	}
	flags := cmd.Flags()
	flags.String("listen", def.ListenAddr, "TCP listen address")
	flags.Int("backlog", def.Backlog, "listen backlog")
	flags.Duration("poll-timeout", def.PollTimeout, "upper bound of one multiplexer wait")
	flags.String("read-chunk", humanize.IBytes(uint64(def.ReadChunkSize)), "bytes requested per receive")
	flags.String("max-request", humanize.IBytes(uint64(def.MaxRequestSize)), "largest accepted request (0 disables the limit)")
	flags.String("multiplexer", def.Multiplexer, "readiness multiplexer: poll or epoll")
	flags.Bool("strict", def.StrictMode, "stop the server on handler or accept failures")
	flags.Duration("handler-timeout", def.HandlerTimeout, "deadline for one query (0 disables)")
	flags.Int("cpu", def.CPU, "pin the event loop thread to this CPU (-1 disables)")
	flags.String("db", "vsmdb.db", "SQLite database file serving the tables")
	flags.String("metrics-listen", "", "address for the Prometheus /metrics endpoint (empty disables)")
	mustBind(v, flags, serveKeys...)
	return cmd
}

// serverConfig builds a server.Config from the bound flags, env and file.
func serverConfig(v *viper.Viper) (*server.Config, error) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = v.GetString("listen")
	cfg.Backlog = v.GetInt("backlog")
	cfg.PollTimeout = v.GetDuration("poll-timeout")
	cfg.Multiplexer = v.GetString("multiplexer")
	cfg.StrictMode = v.GetBool("strict")
	cfg.HandlerTimeout = v.GetDuration("handler-timeout")
	cfg.CPU = v.GetInt("cpu")

	chunk, err := humanize.ParseBytes(v.GetString("read-chunk"))
	if err != nil {
		return nil, fmt.Errorf("read-chunk: %w", err)
	}
	maxReq, err := humanize.ParseBytes(v.GetString("max-request"))
	if err != nil {
		return nil, fmt.Errorf("max-request: %w", err)
	}
	cfg.ReadChunkSize = int(chunk)
	cfg.MaxRequestSize = int(maxReq)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, v *viper.Viper, cfg *server.Config, logger pslog.Logger) error {
	db, err := store.OpenSQLite(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := control.NewMetrics(reg)

	srv, err := server.New(cfg, query.NewHandler(db, logger),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if addr := v.GetString("metrics-listen"); addr != "" {
		stop, err := serveMetrics(ctx, addr, reg, logfields.WithSubsystem(logger, "cli.metrics"))
		if err != nil {
			_ = srv.Close()
			return err
		}
		defer stop()
	}
	return srv.Run(ctx)
}

// serveMetrics exposes reg on addr until the returned stop func is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger pslog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	hs := &http.Server{
		Handler:           control.NewHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics.serve", "error", err)
		}
	}()
	logger.Info("metrics.started", "addr", ln.Addr().String())
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}, nil
}
