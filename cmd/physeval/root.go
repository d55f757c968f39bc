package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/metrics"
)

var version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *http.Server
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg, logger: slog.Default()}
}

func (a *app) close(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics server shutdown", "error", err)
	}
	a.metrics = nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "physeval",
		Short: "physeval - judge generated videos against physical commonsense checklists",
		Long: `physeval samples frames from generated videos, asks a vision language model
whether each video satisfies its checklist of objects, events and physical
standards, and aggregates the stored verdicts into pass rates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9090)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	})

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := config.ParseLogLevel(a.cfg.LogLevel)
		if err != nil {
			return err
		}
		if *debugLogging {
			level = slog.LevelDebug
		}
		a.logger = newLogger(cmd.ErrOrStderr(), level)
		slog.SetDefault(a.logger)

		if a.cfg.MetricsAddr != "" && a.metrics == nil {
			a.metrics = metrics.StartServer(cmd.Context(), a.cfg.MetricsAddr, a.logger)
		}
		return nil
	}

	cmd.AddCommand(newSampleCommand(a))
	cmd.AddCommand(newEvaluateCommand(a))
	cmd.AddCommand(newAnalyzeCommand(a))
	cmd.AddCommand(newRunsCommand(a))

	return cmd
}
