package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

// ConsolidationReport summarizes a corpus consolidation run.
type ConsolidationReport struct {
	Facts    int           `json:"facts"`
	Groups   int           `json:"groups"`
	Merged   int           `json:"merged"`
	Created  int           `json:"created"`
	Duration time.Duration `json:"duration"`
}

// Consolidate merges equivalent facts across documents after all passes
// complete. Facts sharing a canonical id (tier-independent triple identity)
// are grouped; each group's representative is upserted under a per-canonical
// lock so concurrent consolidators of the same fact serialize. Upserts are
// fingerprint-keyed, so re-running on unchanged input is a no-op.
func (e *Engine) Consolidate(ctx context.Context) (*ConsolidationReport, error) {
	start := time.Now()

	facts, err := e.allInformation(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]model.Information)
	for _, f := range facts {
		id := model.CanonicalID(f.Subject, f.Predicate, f.Object)
		groups[id] = append(groups[id], f)
	}

	report := &ConsolidationReport{Facts: len(facts), Groups: len(groups)}
	// Deterministic order so concurrent consolidators acquire locks in the
	// same sequence.
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		group := groups[id]
		if len(group) < 2 {
			continue
		}
		rep := representative(group)
		err := e.store.WithCanonicalLock(ctx, id, func(ctx context.Context) error {
			created, err := e.store.UpsertInformation(ctx, rep)
			if err != nil {
				return err
			}
			if created {
				report.Created++
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "engine: consolidate canonical %s", id)
		}
		report.Merged++
	}

	report.Duration = time.Since(start)
	zap.L().Info("engine: consolidation complete",
		zap.Int("facts", report.Facts),
		zap.Int("groups", report.Groups),
		zap.Int("merged", report.Merged),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// representative picks the strongest-tier member of a canonical group and
// widens it with the group's anchors. Tier is attributed at promotion time
// and never recomputed here; consolidation only unions provenance.
func representative(group []model.Information) model.Information {
	best := group[0]
	for _, f := range group[1:] {
		if f.Tier.StrongerThan(best.Tier) ||
			(f.Tier == best.Tier && f.Confidence > best.Confidence) {
			best = f
		}
	}

	anchors := make([]model.Anchor, len(best.Anchors))
	copy(anchors, best.Anchors)
	best.Anchors = anchors

	seen := make(map[string]bool, len(best.Anchors))
	for _, a := range best.Anchors {
		seen[a.ItemID] = true
	}
	for _, f := range group {
		if f.Fingerprint == best.Fingerprint {
			continue
		}
		for _, a := range f.Anchors {
			if seen[a.ItemID] {
				continue
			}
			seen[a.ItemID] = true
			best.Anchors = append(best.Anchors, a)
		}
	}
	return best
}

// allInformation pages through every persisted fact.
func (e *Engine) allInformation(ctx context.Context) ([]model.Information, error) {
	const page = 500
	var out []model.Information
	for offset := 0; ; offset += page {
		batch, err := e.store.ListInformation(ctx, store.InfoFilter{Limit: page, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "engine: list information")
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}
