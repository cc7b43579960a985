package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/budget"
	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/metrics"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

var ingestNoProposer bool

// documentFile is the input contract: one parsed document per file.
type documentFile struct {
	DocumentID string                 `json:"document_id"`
	Items      []model.StructuralItem `json:"items"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json> [file.json...]",
	Short: "Run document passes over parsed structural items",
	Long:  "Reads one document per JSON file ({document_id, items}), runs the full extraction and promotion pass for each, then consolidates equivalent facts across the batch.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mode := "ingest"
		if ingestNoProposer {
			// No proposer key needed for a pattern-only pass.
			mode = "consolidate"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		m := metrics.New()
		meter := budget.NewMeter(budget.DefaultRates())
		eng, err := initEngine(st, m, meter, !ingestNoProposer)
		if err != nil {
			return err
		}

		// Validate the whole batch up front: every file must index cleanly
		// and document ids must be unique before any proposer call is made.
		registry := index.NewRegistry()
		docs := make([]*documentFile, 0, len(args))
		for _, path := range args {
			doc, err := readDocument(path)
			if err != nil {
				return err
			}
			ix, err := index.Build(doc.DocumentID, doc.Items)
			if err != nil {
				return eris.Wrapf(err, "validate %s", path)
			}
			if err := registry.Add(ix); err != nil {
				return eris.Wrapf(err, "validate %s", path)
			}
			docs = append(docs, doc)
		}

		var totalPromoted, totalAbstained, totalRejected int
		for i, doc := range docs {
			path := args[i]
			report, err := eng.RunDocument(ctx, doc.DocumentID, doc.Items)
			if err != nil {
				return eris.Wrapf(err, "ingest %s", path)
			}

			totalPromoted += report.Promoted
			totalAbstained += report.Abstained
			totalRejected += report.Rejected
			fmt.Printf("%s: %d items, %d candidates, %d promoted, %d abstained, %d rejected (%s)\n",
				doc.DocumentID, report.Items, report.Candidates,
				report.Promoted, report.Abstained, report.Rejected, report.Duration.Round(time.Millisecond))
		}

		consolidation, err := eng.Consolidate(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\nbatch: %d promoted, %d abstained, %d rejected; %d canonical groups, %d merged\n",
			totalPromoted, totalAbstained, totalRejected, consolidation.Groups, consolidation.Merged)
		if spend := meter.Spend(); spend > 0 {
			fmt.Printf("proposer spend: $%.4f\n", spend)
		}
		zap.L().Info("ingest complete",
			zap.Int("documents", len(args)),
			zap.Int("promoted", totalPromoted),
			zap.Float64("spend_usd", meter.Spend()),
		)
		return nil
	},
}

// readDocument parses one input file. A missing document_id falls back to
// the file's base name.
func readDocument(path string) (*documentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		// Tolerate a bare item array.
		var items []model.StructuralItem
		if arrErr := json.Unmarshal(data, &items); arrErr != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		doc.Items = items
	}
	if doc.DocumentID == "" {
		doc.DocumentID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &doc, nil
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoProposer, "no-proposer", false, "pattern strategy only, no generative calls")
	rootCmd.AddCommand(ingestCmd)
}
