package gates

import (
	"context"
	"fmt"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Proximity defaults. Fragments further apart than this within one document
// do not form a single coherent piece of evidence.
const (
	DefaultMaxCharDistance = 600
	DefaultMaxItemGap      = 3
)

// ProximityGate checks that all same-document fragments of a bundle lie
// within a bounded character distance and structural neighborhood of each
// other. Fragments from different documents corroborate rather than chain,
// so they are not compared. Violation rejects the bundle as discontinuous.
type ProximityGate struct {
	maxCharDistance int
	maxItemGap      int
}

// NewProximityGate creates the gate; non-positive limits use the defaults.
func NewProximityGate(maxCharDistance, maxItemGap int) *ProximityGate {
	if maxCharDistance <= 0 {
		maxCharDistance = DefaultMaxCharDistance
	}
	if maxItemGap <= 0 {
		maxItemGap = DefaultMaxItemGap
	}
	return &ProximityGate{maxCharDistance: maxCharDistance, maxItemGap: maxItemGap}
}

func (g *ProximityGate) Name() string { return "proximity" }

func (g *ProximityGate) Check(_ context.Context, _ model.Candidate, bundle model.EvidenceBundle, ix *index.Index) Verdict {
	type located struct {
		frag  model.EvidenceFragment
		start int
		end   int
	}

	var local []located
	for _, f := range bundle.Fragments {
		if f.DocumentID != "" && f.DocumentID != ix.DocumentID() {
			continue // cross-document corroboration, not a proximity chain
		}
		item, ok := ix.Get(f.UnitID)
		if !ok {
			continue // verbatim gate already rejects missing units
		}
		s, e := item.SpanOffsets(f.Span)
		if s < 0 {
			s, e = 0, len(item.Text)
		}
		local = append(local, located{frag: f, start: item.StartOffset + s, end: item.StartOffset + e})
	}

	for i := 0; i < len(local); i++ {
		for j := i + 1; j < len(local); j++ {
			dist := gapBetween(local[i].start, local[i].end, local[j].start, local[j].end)
			if dist > g.maxCharDistance {
				return Stop(model.ReasonDiscontinuous,
					fmt.Sprintf("fragments %s and %s are %d chars apart (max %d)",
						local[i].frag.UnitID, local[j].frag.UnitID, dist, g.maxCharDistance))
			}
			if !ix.Neighbors(local[i].frag.UnitID, local[j].frag.UnitID, g.maxItemGap) {
				return Stop(model.ReasonDiscontinuous,
					fmt.Sprintf("fragments %s and %s are outside the structural neighborhood",
						local[i].frag.UnitID, local[j].frag.UnitID))
			}
		}
	}
	return Pass()
}

// gapBetween returns the character gap between two spans, 0 when they overlap.
func gapBetween(aStart, aEnd, bStart, bEnd int) int {
	if aEnd < bStart {
		return bStart - aEnd
	}
	if bEnd < aStart {
		return aStart - bEnd
	}
	return 0
}
