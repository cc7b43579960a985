package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Build("d1", []model.StructuralItem{
		{ID: "u1", DocumentID: "d1", Position: 0, Text: "The committee approved the merger on Friday.", StartOffset: 0, EndOffset: 44},
		{ID: "u2", DocumentID: "d1", Position: 1, Text: "Shareholders will vote next quarter on the terms.", StartOffset: 45, EndOffset: 94},
		{ID: "u3", DocumentID: "d1", Position: 2, Text: "Regulators raised concerns about market share.", StartOffset: 95, EndOffset: 141},
	})
	require.NoError(t, err)
	return ix
}

func TestResolve_ExactSpan(t *testing.T) {
	r := NewResolver(0, 0)
	res := r.Resolve(buildIndex(t), "approved the merger")
	require.True(t, res.Resolved())
	assert.Equal(t, "u1", res.Anchor.ItemID)
	assert.True(t, res.Anchor.Exact)
	assert.Equal(t, model.GradeDirect, res.Grade)
	assert.Equal(t, 1.0, res.Similarity)

	start, end := res.Anchor.Start, res.Anchor.End
	assert.Equal(t, "approved the merger", buildIndex(t).Items()[0].Text[start:end])
}

func TestResolve_ApproximateSpan(t *testing.T) {
	r := NewResolver(0, 0)
	// Case variation defeats verbatim containment but not the fuzzy pass.
	res := r.Resolve(buildIndex(t), "regulators raised concerns about market share")
	require.True(t, res.Resolved())
	assert.Equal(t, "u3", res.Anchor.ItemID)
	assert.GreaterOrEqual(t, res.Similarity, 0.85)
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewResolver(0, 0)
	res := r.Resolve(buildIndex(t), "completely unrelated text about submarines")
	require.False(t, res.Resolved())
	assert.Equal(t, model.ReasonNoAnchor, res.Reason)
}

func TestResolve_CrossItemNeverTruncated(t *testing.T) {
	r := NewResolver(0, 0)
	// Spans the u1/u2 boundary.
	res := r.Resolve(buildIndex(t), "merger on Friday. Shareholders will vote")
	require.False(t, res.Resolved())
	assert.Equal(t, model.ReasonCrossItem, res.Reason)
	assert.Empty(t, res.Anchor.ItemID)
}

func TestResolve_AmbiguousVerbatim(t *testing.T) {
	ix, err := index.Build("d2", []model.StructuralItem{
		{ID: "a", DocumentID: "d2", Position: 0, Text: "The board met on Monday as scheduled.", StartOffset: 0, EndOffset: 37},
		{ID: "b", DocumentID: "d2", Position: 1, Text: "The board met on Monday, minutes show.", StartOffset: 38, EndOffset: 76},
	})
	require.NoError(t, err)

	r := NewResolver(0, 0)
	res := r.Resolve(ix, "The board met on Monday")
	require.False(t, res.Resolved())
	assert.Equal(t, model.ReasonAmbiguousAnchor, res.Reason)
}

func TestResolve_EmptySpan(t *testing.T) {
	r := NewResolver(0, 0)
	res := r.Resolve(buildIndex(t), "")
	require.False(t, res.Resolved())
	assert.Equal(t, model.ReasonNoAnchor, res.Reason)
}

func TestResolve_Memoized(t *testing.T) {
	r := NewResolver(0, 0)
	ix := buildIndex(t)
	first := r.Resolve(ix, "approved the merger")
	second := r.Resolve(ix, "approved the merger")
	assert.Equal(t, first, second)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "the board met", normalize("  The   Board\tMET "))
}

func TestContainment_VerbatimSubstringIsOne(t *testing.T) {
	span := trigrams(normalize("approved the merger"))
	item := trigrams(normalize("The committee approved the merger on Friday."))
	assert.Equal(t, 1.0, containment(span, item))
}
