// Package generate produces candidates from an indexed document. Two
// strategies run side by side: a deterministic trigger vocabulary over
// discourse markers, and an external generative proposer that may only point
// at units, never supply evidence text. Silence is a legitimate outcome for
// both.
package generate

import (
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Extraction pairs a candidate with the evidence bundle its strategy
// assembled. A non-empty Reason marks a pre-decided abstention that skips
// the gate chain entirely.
type Extraction struct {
	Candidate model.Candidate
	Bundle    model.EvidenceBundle
	Reason    model.ReasonCode
	Detail    string
}

// Merge combines pattern and generative extractions, dropping generative
// candidates that duplicate a pattern candidate on the same relation and
// unit span. The deterministic basis wins on equal ground. Pre-decided
// abstentions are always kept; they carry no span to collide on.
func Merge(pattern, generative []Extraction) []Extraction {
	seen := make(map[string]bool, len(pattern))
	for _, ex := range pattern {
		if ex.Reason == "" {
			seen[ex.Candidate.DedupKey()] = true
		}
	}

	out := make([]Extraction, 0, len(pattern)+len(generative))
	out = append(out, pattern...)
	for _, ex := range generative {
		if ex.Reason == "" && seen[ex.Candidate.DedupKey()] {
			continue
		}
		out = append(out, ex)
	}
	return out
}
