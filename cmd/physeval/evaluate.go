package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bdougie/physeval/internal/analyzer"
	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/prompts"
	"github.com/bdougie/physeval/internal/storage"
	"github.com/bdougie/physeval/internal/tracing"
)

func newEvaluateCommand(a *app) *cobra.Command {
	cfg := a.cfg

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Ask the judge model for a verdict on every video with sampled frames",
		Long: `Evaluate loads the checklist dataset, keeps the videos whose frames exist under
--frames-root, and asks the judge model to grade each one. One JSON verdict per
video is written to <results-root>/<model>/frame-<k>/is_two_step_<True|False>/.

Videos whose frames are missing or incomplete are skipped. A judge that never
answers is recorded as "Error: No response received" after the configured attempts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateEvaluate(); err != nil {
				return err
			}
			return runEvaluate(cmd, a)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Model, "model", cfg.Model, "Judge model name (selects the Azure deployment)")
	f.IntVar(&cfg.Frames, "frames", cfg.Frames, "Number of sampled frames per video")
	f.BoolVar(&cfg.Parallel, "parallel", cfg.Parallel, "Evaluate videos concurrently")
	f.IntVar(&cfg.MaxWorkers, "max-workers", cfg.MaxWorkers, "Worker limit in parallel mode (1-100)")
	f.StringVar(&cfg.Variant, "variant", cfg.Variant, "Prompt variant: one_step, two_step_with_standard_first or two_step_no_standard_first")
	f.BoolVar(&cfg.DebugModel, "debug-model", cfg.DebugModel, "Call the judge once per video without retries")
	f.StringVar(&cfg.DatasetPath, "dataset", cfg.DatasetPath, "Checklist dataset (JSON or YAML)")
	f.StringVar(&cfg.FramesRoot, "frames-root", cfg.FramesRoot, "Folder holding one frame folder per video")
	f.StringVar(&cfg.ResultsRoot, "results-root", cfg.ResultsRoot, "Folder verdicts are written under")
	f.StringVar(&cfg.Backend, "backend", cfg.Backend, "Judge backend: azure or ollama")

	return cmd
}

func runEvaluate(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	cfg, logger := a.cfg, a.logger

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("tracer shutdown", "error", err)
				}
			}()
		}
	}

	idx, err := prompts.Load(cfg.DatasetPath, logger)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	ids, _ := idx.Filter(cfg.FramesRoot)

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	invoker := analyzer.NewInvoker(backend, logger)
	invoker.MaxAttempts = cfg.Attempts()
	invoker.RetryDelay = cfg.RetryDelay

	variant := cfg.PromptVariant()
	model := cfg.JudgeModel()
	run := storage.NewRun(model, cfg.Frames, variant)
	store := storage.NewFileStore(cfg.ResultsRoot)

	var mirrors []analyzer.VerdictStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, run)
		if err != nil {
			logger.Warn("postgres mirror disabled", "error", err)
		} else {
			defer pg.Close()
			mirrors = append(mirrors, pg)
		}
	}

	var ledger *storage.Ledger
	if cfg.LedgerPath != "" {
		ledger, err = storage.OpenLedger(ctx, cfg.LedgerPath, run)
		if err != nil {
			logger.Warn("run ledger disabled", "error", err)
			ledger = nil
		} else {
			defer ledger.Close()
			mirrors = append(mirrors, ledger)
		}
	}

	p := &analyzer.Processor{
		Index:      idx,
		Invoker:    invoker,
		Store:      store,
		Mirrors:    mirrors,
		FramesRoot: cfg.FramesRoot,
		Frames:     cfg.Frames,
		Variant:    variant,
		Model:      model,
		Parallel:   cfg.Parallel,
		MaxWorkers: cfg.MaxWorkers,
		Logger:     logger,
	}
	logger.Info("evaluation run", "run_id", run.ID, "backend", backend.Name())
	summary := p.Run(ctx, ids)

	if ledger != nil {
		err := ledger.Finish(context.WithoutCancel(ctx), storage.RunCounts{
			Processed: summary.Processed,
			Saved:     summary.Saved,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
		})
		if err != nil {
			logger.Warn("could not finish ledger run", "error", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d videos: %d saved, %d skipped, %d failed\n",
		summary.Processed, summary.Saved, summary.Skipped, summary.Failed)
	fmt.Fprintf(out, "Results saved under %s\n", storage.ResultDir(cfg.ResultsRoot, model, cfg.Frames, variant.IsTwoStep()))
	if summary.Canceled > 0 {
		return fmt.Errorf("evaluation interrupted with %d videos left: %w", summary.Canceled, context.Cause(ctx))
	}
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analyzer.Backend, error) {
	switch cfg.Backend {
	case config.BackendOllama:
		return analyzer.NewOllamaBackend(ctx, analyzer.OllamaOptions{
			BaseURL: cfg.OllamaBaseURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		}, logger)
	default:
		return analyzer.NewAzureOpenAIBackend(analyzer.AzureOptions{
			Endpoint:   cfg.AzureEndpoint,
			Deployment: cfg.Deployment(),
			APIVersion: cfg.AzureAPIVersion,
			APIKey:     cfg.AzureAPIKey,
		})
	}
}
