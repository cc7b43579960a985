package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func testInformation() model.Information {
	return model.Information{
		Fingerprint: model.Fingerprint("the dam", "withstands", "the flood", model.TierExplicit),
		Subject:     "the dam",
		Predicate:   "withstands",
		Object:      "the flood",
		Relation:    model.RelationElaboration,
		Tier:        model.TierExplicit,
		Grade:       model.GradeDirect,
		Confidence:  0.8,
		Anchors:     []model.Anchor{{ItemID: "u1", Start: 0, End: 12, Exact: true}},
		DocumentID:  "d1",
		CandidateID: "c1",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestPostgresStore_UpsertInformation_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO information`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "the dam", "withstands", "the flood",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "d1", "c1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.UpsertInformation(context.Background(), testInformation())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertInformation_ExistingIsNoOp(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO information`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.UpsertInformation(context.Background(), testInformation())
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertInformation_RejectsInvalid(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	invalid := testInformation()
	invalid.Anchors = nil
	_, err := s.UpsertInformation(context.Background(), invalid)
	assert.Error(t, err)
}

func TestPostgresStore_GetInformation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM information WHERE fingerprint = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetInformation(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetInformation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := testInformation()

	rows := pgxmock.NewRows([]string{
		"fingerprint", "subject", "predicate", "object", "relation",
		"tier", "grade", "confidence", "anchors", "document_id", "candidate_id", "created_at",
	}).AddRow(want.Fingerprint, want.Subject, want.Predicate, want.Object,
		string(want.Relation), int(want.Tier), string(want.Grade), want.Confidence,
		[]byte(`[{"item_id":"u1","start":0,"end":12,"exact":true}]`),
		want.DocumentID, want.CandidateID, want.CreatedAt)

	mock.ExpectQuery(`SELECT .+ FROM information WHERE fingerprint = \$1`).
		WithArgs(want.Fingerprint).
		WillReturnRows(rows)

	got, err := s.GetInformation(context.Background(), want.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, want.Subject, got.Subject)
	assert.Equal(t, model.TierExplicit, got.Tier)
	require.Len(t, got.Anchors, 1)
	assert.Equal(t, "u1", got.Anchors[0].ItemID)
	assert.True(t, got.Anchors[0].Exact)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLogEntry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO assertion_log`).
		WithArgs("c1", "d1", "PROMOTE", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"PROMOTED", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendLogEntry(context.Background(), model.AssertionLogEntry{
		CandidateID: "c1",
		DocumentID:  "d1",
		Decision:    model.DecisionPromote,
		Tier:        model.TierExplicit,
		Grade:       model.GradeDirect,
		Reason:      model.ReasonPromoted,
		Timestamp:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLogEntry_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO assertion_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.AppendLogEntry(context.Background(), model.AssertionLogEntry{
		CandidateID: "c1",
		DocumentID:  "d1",
		Decision:    model.DecisionReject,
		Reason:      model.ReasonFabrication,
		Timestamp:   time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicateLogEntry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLogEntries_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"candidate_id", "document_id", "decision", "tier", "grade", "reason",
		"evidence_unit_ids", "created_at",
	}).AddRow("c1", "d1", "PROMOTE", int(model.TierExplicit), "direct", "PROMOTED",
		[]byte(`["u1"]`), time.Now().UTC())

	mock.ExpectQuery(`SELECT .+ FROM assertion_log WHERE 1=1 AND document_id = \$1 AND decision = \$2`).
		WithArgs("d1", "PROMOTE").
		WillReturnRows(rows)

	entries, err := s.ListLogEntries(context.Background(), LogFilter{
		DocumentID: "d1",
		Decision:   model.DecisionPromote,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].CandidateID)
	assert.Equal(t, []string{"u1"}, entries[0].EvidenceUnitIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithCanonicalLock(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("canon-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	var ran bool
	err := s.WithCanonicalLock(context.Background(), "canon-1", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithCanonicalLock_FnErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("canon-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	wantErr := assert.AnError
	err := s.WithCanonicalLock(context.Background(), "canon-1", func(context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
