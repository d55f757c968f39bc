package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdougie/physeval/internal/config"
	"github.com/bdougie/physeval/internal/storage"
)

func newRunsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List evaluate runs recorded in the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.LedgerPath == "" {
				return fmt.Errorf("%w: no ledger configured", config.ErrInvalid)
			}
			if limit < 1 {
				return fmt.Errorf("%w: --limit must be at least 1, got %d", config.ErrInvalid, limit)
			}
			if _, err := os.Stat(a.cfg.LedgerPath); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s\n", a.cfg.LedgerPath)
				return nil
			}

			ledger, err := storage.OpenLedger(cmd.Context(), a.cfg.LedgerPath, storage.Run{})
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tMODEL\tFRAMES\tVARIANT\tSTARTED\tSAVED\tSKIPPED\tFAILED\tNO RESPONSE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID.String()[:8], r.Model, r.Frames, r.Variant, r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Counts.Saved, r.Counts.Skipped, r.Counts.Failed, r.NoResponses)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&a.cfg.LedgerPath, "ledger", a.cfg.LedgerPath, "SQLite run ledger")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list, most recent first")

	return cmd
}
