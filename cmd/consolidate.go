package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-kg/ingest-cli/internal/budget"
	"github.com/veridian-kg/ingest-cli/internal/metrics"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge equivalent facts across documents",
	Long:  "Groups promoted information by canonical triple identity and merges each group under a per-canonical-id lock. Safe to re-run; upserts are fingerprint-keyed no-ops.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("consolidate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		eng, err := initEngine(st, metrics.New(), budget.NewMeter(budget.DefaultRates()), false)
		if err != nil {
			return err
		}

		report, err := eng.Consolidate(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%d facts in %d canonical groups, %d merged, %d created\n",
			report.Facts, report.Groups, report.Merged, report.Created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
