package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/results"
	"github.com/bdougie/physeval/internal/storage"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		model       string
		frames      int
		variantDir  string
		resultsRoot string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report pass rates over the stored verdicts of one configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			twoStep, err := parseVariantDir(variantDir)
			if err != nil {
				return err
			}
			if frames < 1 {
				return fmt.Errorf("%w: --frames must be at least 1, got %d", config.ErrInvalid, frames)
			}

			dir := storage.ResultDir(resultsRoot, model, frames, twoStep)
			agg := &results.Aggregator{Logger: a.logger}
			stats, err := agg.Aggregate(dir)
			if errors.Is(err, results.ErrNoResults) {
				fmt.Fprintf(cmd.OutOrStdout(), "No result files found in %s\n", dir)
				return nil
			}
			if err != nil {
				return err
			}
			stats.Model, stats.Frames = model, frames

			if asJSON {
				return results.ReportJSON(cmd.OutOrStdout(), stats)
			}
			return results.Report(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringVar(&model, "model", a.cfg.Model, "Judge model whose verdicts are analysed")
	cmd.Flags().IntVar(&frames, "frames", a.cfg.Frames, "Number of frames the verdicts were produced with")
	cmd.Flags().StringVar(&variantDir, "variant-dir", storage.TwoStepDirName(false), "is_two_step_False or is_two_step_True")
	cmd.Flags().StringVar(&resultsRoot, "results-root", a.cfg.ResultsRoot, "Folder verdicts were written under")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the statistics as JSON")

	return cmd
}

func parseVariantDir(name string) (bool, error) {
	switch name {
	case storage.TwoStepDirName(false):
		return false, nil
	case storage.TwoStepDirName(true):
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown variant directory %q", config.ErrInvalid, name)
	}
}
