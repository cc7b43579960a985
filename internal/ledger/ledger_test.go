package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

func entry(candID, docID string, d model.Decision) model.AssertionLogEntry {
	return model.AssertionLogEntry{
		CandidateID: candID,
		DocumentID:  docID,
		Decision:    d,
		Reason:      model.ReasonPromoted,
	}
}

func TestMemory_AppendOnce(t *testing.T) {
	log := NewMemory()
	require.NoError(t, log.Append(entry("c1", "d1", model.DecisionPromote)))

	err := log.Append(entry("c1", "d1", model.DecisionReject))
	require.ErrorIs(t, err, ErrDuplicateEntry)

	// The first entry is untouched.
	got, ok := log.ByCandidate("c1")
	require.True(t, ok)
	assert.Equal(t, model.DecisionPromote, got.Decision)
	assert.Equal(t, 1, log.Len())
}

func TestMemory_RejectsEmptyCandidateID(t *testing.T) {
	log := NewMemory()
	assert.Error(t, log.Append(entry("", "d1", model.DecisionAbstain)))
	assert.Equal(t, 0, log.Len())
}

func TestMemory_Queries(t *testing.T) {
	log := NewMemory()
	require.NoError(t, log.Append(entry("c1", "d1", model.DecisionPromote)))
	require.NoError(t, log.Append(entry("c2", "d1", model.DecisionAbstain)))
	require.NoError(t, log.Append(entry("c3", "d2", model.DecisionPromote)))

	byDoc := log.ByDocument("d1")
	require.Len(t, byDoc, 2)
	assert.Equal(t, "c1", byDoc[0].CandidateID)
	assert.Equal(t, "c2", byDoc[1].CandidateID)

	promoted := log.ByDecision(model.DecisionPromote)
	require.Len(t, promoted, 2)
	assert.Equal(t, "c1", promoted[0].CandidateID)
	assert.Equal(t, "c3", promoted[1].CandidateID)

	_, ok := log.ByCandidate("missing")
	assert.False(t, ok)
}

func TestMemory_ConcurrentAppendSameCandidate(t *testing.T) {
	log := NewMemory()
	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = log.Append(entry("c1", "d1", model.DecisionPromote))
		}(i)
	}
	wg.Wait()

	var oks int
	for _, err := range errs {
		if err == nil {
			oks++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateEntry)
		}
	}
	assert.Equal(t, 1, oks)
	assert.Equal(t, 1, log.Len())
}

func TestMemory_ConcurrentDistinctCandidates(t *testing.T) {
	log := NewMemory()
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			assert.NoError(t, log.Append(entry(id, "d1", model.DecisionAbstain)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, log.Len())
}

func TestNewEntry(t *testing.T) {
	cand := model.NewCandidate("doc-9", model.KindRelation, model.MethodPattern)
	cand.UnitIDs = []string{"u1", "u2"}
	dec := model.PromotionDecision{
		Decision: model.DecisionPromote,
		Reason:   model.ReasonPromoted,
		Tier:     model.TierExplicit,
		Grade:    model.GradeDirect,
	}

	e := NewEntry(cand, dec)
	assert.Equal(t, cand.ID, e.CandidateID)
	assert.Equal(t, "doc-9", e.DocumentID)
	assert.Equal(t, model.DecisionPromote, e.Decision)
	assert.Equal(t, model.TierExplicit, e.Tier)
	assert.Equal(t, []string{"u1", "u2"}, e.EvidenceUnitIDs)
	assert.False(t, e.Timestamp.IsZero())
}
