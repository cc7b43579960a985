package model

// EvidenceFragment is the atomic unit of proof: one span of text inside one
// structural item, with the confidence assigned at extraction time.
type EvidenceFragment struct {
	Span       string  `json:"span"`
	UnitID     string  `json:"unit_id"`
	DocumentID string  `json:"document_id"`
	Confidence float64 `json:"confidence"`
}

// EvidenceBundle is the ordered set of fragments supporting one candidate.
type EvidenceBundle struct {
	Fragments []EvidenceFragment `json:"fragments"`
}

// Confidence returns the bundle confidence: the minimum fragment confidence.
// The whole chain is only as strong as its least-supported piece. Returns 0
// for an empty bundle. The result is invariant under fragment reordering.
func (b EvidenceBundle) Confidence() float64 {
	if len(b.Fragments) == 0 {
		return 0
	}
	min := b.Fragments[0].Confidence
	for _, f := range b.Fragments[1:] {
		if f.Confidence < min {
			min = f.Confidence
		}
	}
	return min
}

// DistinctDocuments returns the number of distinct source documents across
// the bundle's fragments.
func (b EvidenceBundle) DistinctDocuments() int {
	seen := make(map[string]struct{}, len(b.Fragments))
	for _, f := range b.Fragments {
		seen[f.DocumentID] = struct{}{}
	}
	return len(seen)
}

// Diversity returns the fraction of fragments that come from distinct source
// documents: distinct documents / fragment count. Returns 0 for an empty
// bundle. A bundle of n copies of the same repeated pattern scores 1/n.
func (b EvidenceBundle) Diversity() float64 {
	if len(b.Fragments) == 0 {
		return 0
	}
	return float64(b.DistinctDocuments()) / float64(len(b.Fragments))
}

// UnitIDs returns the fragment unit ids in bundle order, deduplicated.
func (b EvidenceBundle) UnitIDs() []string {
	seen := make(map[string]struct{}, len(b.Fragments))
	var ids []string
	for _, f := range b.Fragments {
		if _, ok := seen[f.UnitID]; ok {
			continue
		}
		seen[f.UnitID] = struct{}{}
		ids = append(ids, f.UnitID)
	}
	return ids
}
