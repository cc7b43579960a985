package gates

import (
	"context"
	"fmt"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// VerbatimGate rejects any candidate whose cited evidence is not an exact,
// case-preserving substring of its source unit. This is the structural
// anti-fabrication guarantee: it runs before every semantic gate and cannot
// be bypassed by confidence. A paraphrase, truncation, or hallucinated quote
// is a hard reject.
type VerbatimGate struct{}

// NewVerbatimGate creates the verbatim validator.
func NewVerbatimGate() *VerbatimGate {
	return &VerbatimGate{}
}

func (g *VerbatimGate) Name() string { return "verbatim" }

// Check re-reads every cited unit by id and verifies the evidence text.
func (g *VerbatimGate) Check(_ context.Context, cand model.Candidate, bundle model.EvidenceBundle, ix *index.Index) Verdict {
	if cand.Evidence == "" || len(cand.UnitIDs) == 0 {
		return Stop(model.ReasonFabrication, "candidate cites no evidence")
	}

	// The candidate's evidence must appear verbatim in at least one cited unit.
	found := false
	for _, id := range cand.UnitIDs {
		item, ok := ix.Get(id)
		if !ok {
			return Stop(model.ReasonFabrication, fmt.Sprintf("cited unit %s does not exist", id))
		}
		if item.Contains(cand.Evidence) {
			found = true
		}
	}
	if !found {
		return Stop(model.ReasonFabrication, "evidence is not a verbatim span of any cited unit")
	}

	// Every fragment span must be a verbatim span of its own unit.
	for _, f := range bundle.Fragments {
		item, ok := ix.Get(f.UnitID)
		if !ok {
			return Stop(model.ReasonFabrication, fmt.Sprintf("fragment cites missing unit %s", f.UnitID))
		}
		if !item.Contains(f.Span) {
			return Stop(model.ReasonFabrication, fmt.Sprintf("fragment span is not verbatim in unit %s", f.UnitID))
		}
	}

	return Pass()
}
