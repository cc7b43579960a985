package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

var (
	decisionsDocument string
	decisionsDecision string
	decisionsReason   string
	decisionsLimit    int
	decisionsOffset   int
	decisionsJSON     bool
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Query the assertion log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("decisions"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListLogEntries(ctx, store.LogFilter{
			DocumentID: decisionsDocument,
			Decision:   model.Decision(decisionsDecision),
			Reason:     model.ReasonCode(decisionsReason),
			Limit:      decisionsLimit,
			Offset:     decisionsOffset,
		})
		if err != nil {
			return err
		}

		if decisionsJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}

		for _, e := range entries {
			tier := ""
			if e.Tier != 0 {
				tier = " " + e.Tier.String()
			}
			fmt.Printf("%s  %-8s %-34s%s  doc=%s  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Decision, e.Reason, tier, e.DocumentID, e.CandidateID)
		}
		fmt.Printf("%d entries\n", len(entries))
		return nil
	},
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsDocument, "document", "", "filter by document id")
	decisionsCmd.Flags().StringVar(&decisionsDecision, "decision", "", "filter by decision (PROMOTE, ABSTAIN, REJECT)")
	decisionsCmd.Flags().StringVar(&decisionsReason, "reason", "", "filter by reason code")
	decisionsCmd.Flags().IntVar(&decisionsLimit, "limit", 100, "max entries")
	decisionsCmd.Flags().IntVar(&decisionsOffset, "offset", 0, "skip entries")
	decisionsCmd.Flags().BoolVar(&decisionsJSON, "json", false, "emit JSON lines")
	rootCmd.AddCommand(decisionsCmd)
}
