package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrWong99/sttdata/internal/app"
	"github.com/MrWong99/sttdata/internal/config"
	"github.com/MrWong99/sttdata/internal/health"
	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/internal/pipeline"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		start, end int
		dryRun     bool
		resume     bool
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the configured catalog range into dataset rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("start") {
				cfg.Catalog.StartSrNo = start
			}
			if flags.Changed("end") {
				cfg.Catalog.EndSrNo = end
			}

			var batchOpts []pipeline.BatchOption
			if runID != "" {
				batchOpts = append(batchOpts, pipeline.WithRunID(runID))
			}
			batchOpts = append(batchOpts, pipeline.WithResume(resume))

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBatch(sigCtx, cmd, cfg, dryRun, batchOpts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&start, "start", 0, "first catalog serial number to process (overrides catalog.start_sr_no)")
	flags.IntVar(&end, "end", 0, "last catalog serial number to process (overrides catalog.end_sr_no)")
	flags.BoolVar(&dryRun, "dry-run", false, "process recordings without writing rows or uploading audio")
	flags.BoolVar(&resume, "resume", false, "skip recordings the ledger already holds as emitted")
	flags.StringVar(&runID, "run-id", "", "identifier recorded in the ledger (default: random UUID)")
	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dryRun bool, batchOpts []pipeline.BatchOption) error {
	// Two runs appending to the same CSV would interleave rows.
	lock := flock.New(cfg.Output.CSVPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another sttdata run is writing %s", cfg.Output.CSVPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("release output lock", "err", err)
		}
	}()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Server.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("observability shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(ctx, cfg, reg, metrics)
	if err != nil {
		return err
	}
	defer providers.Close()

	a, err := app.New(ctx, cfg, providers.Providers, app.WithMetrics(metrics), app.WithDryRun(dryRun))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(sctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	if addr := cfg.Server.ListenAddr; addr != "" {
		srv, err := startAdminServer(ctx, addr, a, metrics)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				slog.Warn("admin server shutdown error", "err", err)
			}
		}()
	}

	slog.Info("sttdata starting",
		"version", version,
		"catalog", cfg.Catalog.Source,
		"output", cfg.Output.CSVPath,
		"dry_run", dryRun,
	)

	sum, runErr := a.Run(ctx, a.Range(), batchOpts...)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderSummary(out, sum))
	if errors.Is(runErr, context.Canceled) {
		slog.Info("run interrupted; rerun with --resume to continue", "run_id", sum.RunID)
	}
	return runErr
}

// startAdminServer serves /metrics, /healthz and /readyz until ctx ends or
// the returned server is shut down.
func startAdminServer(ctx context.Context, addr string, a *app.App, metrics *observe.Metrics) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	checks := append(a.Checkers(), health.ContextChecker(ctx, "batch"))
	health.New(checks...).Register(mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("admin server listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "err", err)
		}
	}()
	slog.Info("admin server listening", "addr", ln.Addr().String())
	return srv, nil
}

func renderSummary(w io.Writer, sum pipeline.Summary) string {
	rows := [][]string{
		{"run", sum.RunID},
		{"recordings", strconv.Itoa(sum.Total)},
		{"emitted", strconv.Itoa(sum.Emitted)},
		{"rejected", strconv.Itoa(sum.Rejected)},
		{"failed", strconv.Itoa(sum.Failed)},
		{"cancelled", strconv.Itoa(sum.Cancelled)},
		{"skipped", strconv.Itoa(sum.Skipped)},
		{"segments", strconv.Itoa(sum.Segments)},
		{"duration", sum.Duration.Round(time.Millisecond).String()},
	}
	return renderTable(w, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
