package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBundleConfidence_MinRule(t *testing.T) {
	b := EvidenceBundle{Fragments: []EvidenceFragment{
		{Span: "a", UnitID: "u1", DocumentID: "d1", Confidence: 0.9},
		{Span: "b", UnitID: "u2", DocumentID: "d1", Confidence: 0.4},
		{Span: "c", UnitID: "u3", DocumentID: "d2", Confidence: 0.7},
	}}
	assert.Equal(t, 0.4, b.Confidence())
}

func TestBundleConfidence_Empty(t *testing.T) {
	assert.Equal(t, 0.0, EvidenceBundle{}.Confidence())
}

func TestBundleConfidence_ReorderInvariant(t *testing.T) {
	frags := []EvidenceFragment{
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.55},
		{UnitID: "u2", DocumentID: "d2", Confidence: 0.91},
		{UnitID: "u3", DocumentID: "d3", Confidence: 0.62},
	}
	forward := EvidenceBundle{Fragments: frags}
	reversed := EvidenceBundle{Fragments: []EvidenceFragment{frags[2], frags[0], frags[1]}}
	assert.Equal(t, forward.Confidence(), reversed.Confidence())
}

func TestBundleDiversity(t *testing.T) {
	b := EvidenceBundle{Fragments: []EvidenceFragment{
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.8},
		{UnitID: "u2", DocumentID: "d1", Confidence: 0.8},
		{UnitID: "u3", DocumentID: "d2", Confidence: 0.8},
		{UnitID: "u4", DocumentID: "d2", Confidence: 0.8},
	}}
	assert.Equal(t, 2, b.DistinctDocuments())
	assert.InDelta(t, 0.5, b.Diversity(), 0.001)
}

func TestBundleDiversity_RepeatedPattern(t *testing.T) {
	// Four copies of the same fragment from one document: low diversity.
	b := EvidenceBundle{Fragments: []EvidenceFragment{
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.9},
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.9},
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.9},
		{UnitID: "u1", DocumentID: "d1", Confidence: 0.9},
	}}
	assert.InDelta(t, 0.25, b.Diversity(), 0.001)
}

func TestBundleUnitIDs_Deduplicated(t *testing.T) {
	b := EvidenceBundle{Fragments: []EvidenceFragment{
		{UnitID: "u2", Confidence: 0.5},
		{UnitID: "u1", Confidence: 0.5},
		{UnitID: "u2", Confidence: 0.5},
	}}
	assert.Equal(t, []string{"u2", "u1"}, b.UnitIDs())
}
