package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-kg/ingest-cli/internal/metrics"
	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, metrics.New()), st
}

func seedEntry(t *testing.T, st store.Store, candidateID, documentID string, decision model.Decision, reason model.ReasonCode) {
	t.Helper()
	err := st.AppendLogEntry(context.Background(), model.AssertionLogEntry{
		CandidateID: candidateID,
		DocumentID:  documentID,
		Decision:    decision,
		Reason:      reason,
		Tier:        model.TierExplicit,
		Grade:       model.GradeDirect,
		Timestamp:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedInformation(t *testing.T, st store.Store, subject string, tier model.DefensibilityTier) model.Information {
	t.Helper()
	info := model.Information{
		Fingerprint: model.Fingerprint(subject, "feeds", "the delta", tier),
		Subject:     subject,
		Predicate:   "feeds",
		Object:      "the delta",
		Tier:        tier,
		Grade:       model.GradeDirect,
		Confidence:  0.8,
		Anchors:     []model.Anchor{{ItemID: "u1", Start: 0, End: 20, Exact: true}},
		DocumentID:  "doc-1",
		CandidateID: "cand-" + subject,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := st.UpsertInformation(context.Background(), info)
	require.NoError(t, err)
	return info
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDecisions_FilterByDecision(t *testing.T) {
	s, st := newTestServer(t)
	seedEntry(t, st, "c1", "doc-1", model.DecisionPromote, model.ReasonPromoted)
	seedEntry(t, st, "c2", "doc-1", model.DecisionReject, model.ReasonFabrication)
	seedEntry(t, st, "c3", "doc-2", model.DecisionPromote, model.ReasonPromoted)

	rec := get(t, s, "/v1/decisions?decision=PROMOTE")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Decisions []model.AssertionLogEntry `json:"decisions"`
		Count     int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	for _, e := range body.Decisions {
		assert.Equal(t, model.DecisionPromote, e.Decision)
	}
}

func TestDecisions_FilterByDocumentAndReason(t *testing.T) {
	s, st := newTestServer(t)
	seedEntry(t, st, "c1", "doc-1", model.DecisionAbstain, model.ReasonBudgetExhausted)
	seedEntry(t, st, "c2", "doc-1", model.DecisionAbstain, model.ReasonBelowThreshold)
	seedEntry(t, st, "c3", "doc-2", model.DecisionAbstain, model.ReasonBudgetExhausted)

	rec := get(t, s, "/v1/decisions?document=doc-1&reason=ABSTAIN_BUDGET_EXHAUSTED")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Decisions []model.AssertionLogEntry `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Decisions, 1)
	assert.Equal(t, "c1", body.Decisions[0].CandidateID)
}

func TestGetInformation(t *testing.T) {
	s, st := newTestServer(t)
	info := seedInformation(t, st, "the headwaters", model.TierExplicit)

	rec := get(t, s, "/v1/information/"+info.Fingerprint)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Information
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, info.Fingerprint, got.Fingerprint)
	assert.Equal(t, "the headwaters", got.Subject)
}

func TestGetInformation_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/information/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListInformation_TierFilter(t *testing.T) {
	s, st := newTestServer(t)
	seedInformation(t, st, "the headwaters", model.TierExplicit)
	seedInformation(t, st, "the tributary", model.TierDiscursive)

	rec := get(t, s, "/v1/information?tier=explicit")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Information []model.Information `json:"information"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Information, 1)
	assert.Equal(t, model.TierExplicit, body.Information[0].Tier)
}

func TestListInformation_BadTier(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/information?tier=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimitParam(t *testing.T) {
	s, st := newTestServer(t)
	for _, id := range []string{"c1", "c2", "c3"} {
		seedEntry(t, st, id, "doc-1", model.DecisionReject, model.ReasonTautology)
	}

	rec := get(t, s, "/v1/decisions?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}
