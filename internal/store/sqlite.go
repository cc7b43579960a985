package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// SQLiteStore implements Store for single-process runs and tests. Canonical
// locks are in-process keyed mutexes; a multi-writer deployment needs the
// Postgres store.
type SQLiteStore struct {
	db *sql.DB

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Use ":memory:" for an ephemeral store.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS information (
	fingerprint  TEXT PRIMARY KEY,
	canonical_id TEXT NOT NULL,
	subject      TEXT NOT NULL,
	predicate    TEXT NOT NULL,
	object       TEXT NOT NULL,
	relation     TEXT NOT NULL DEFAULT '',
	tier         INTEGER NOT NULL,
	grade        TEXT NOT NULL,
	confidence   REAL NOT NULL,
	anchors      TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS assertion_log (
	candidate_id      TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL,
	decision          TEXT NOT NULL,
	tier              INTEGER NOT NULL DEFAULT 0,
	grade             TEXT NOT NULL DEFAULT '',
	reason            TEXT NOT NULL,
	evidence_unit_ids TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_information_canonical_id ON information(canonical_id);
CREATE INDEX IF NOT EXISTS idx_information_document_id ON information(document_id);
CREATE INDEX IF NOT EXISTS idx_assertion_log_document_id ON assertion_log(document_id);
CREATE INDEX IF NOT EXISTS idx_assertion_log_decision ON assertion_log(decision);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertInformation(ctx context.Context, info model.Information) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, eris.Wrap(err, "sqlite: upsert information")
	}
	anchors, err := json.Marshal(info.Anchors)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal anchors")
	}
	canonical := model.CanonicalID(info.Subject, info.Predicate, info.Object)

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO information
			(fingerprint, canonical_id, subject, predicate, object, relation,
			 tier, grade, confidence, anchors, document_id, candidate_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Fingerprint, canonical, info.Subject, info.Predicate, info.Object,
		string(info.Relation), int(info.Tier), string(info.Grade), info.Confidence,
		string(anchors), info.DocumentID, info.CandidateID, info.CreatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert information %s", info.Fingerprint)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetInformation(ctx context.Context, fingerprint string) (*model.Information, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, subject, predicate, object, relation, tier, grade,
		       confidence, anchors, document_id, candidate_id, created_at
		FROM information WHERE fingerprint = ?`, fingerprint)
	info, err := scanInformationSQL(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "information %s", fingerprint)
		}
		return nil, eris.Wrapf(err, "sqlite: get information %s", fingerprint)
	}
	return info, nil
}

func (s *SQLiteStore) ListInformation(ctx context.Context, filter InfoFilter) ([]model.Information, error) {
	query := `
		SELECT fingerprint, subject, predicate, object, relation, tier, grade,
		       confidence, anchors, document_id, candidate_id, created_at
		FROM information WHERE 1=1`
	var args []any
	if filter.CanonicalID != "" {
		query += " AND canonical_id = ?"
		args = append(args, filter.CanonicalID)
	}
	if filter.DocumentID != "" {
		query += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.Tier != 0 {
		query += " AND tier = ?"
		args = append(args, int(filter.Tier))
	}
	query += " ORDER BY created_at DESC"
	query, args = applyPage(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list information")
	}
	defer rows.Close()

	var out []model.Information
	for rows.Next() {
		info, err := scanInformationSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan information")
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendLogEntry(ctx context.Context, entry model.AssertionLogEntry) error {
	if entry.CandidateID == "" {
		return eris.New("sqlite: log entry missing candidate id")
	}
	unitIDs, err := json.Marshal(entry.EvidenceUnitIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unit ids")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO assertion_log
			(candidate_id, document_id, decision, tier, grade, reason, evidence_unit_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CandidateID, entry.DocumentID, string(entry.Decision), int(entry.Tier),
		string(entry.Grade), string(entry.Reason), string(unitIDs), entry.Timestamp)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append log entry %s", entry.CandidateID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrDuplicateLogEntry, "candidate %s", entry.CandidateID)
	}
	return nil
}

func (s *SQLiteStore) GetLogEntry(ctx context.Context, candidateID string) (*model.AssertionLogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT candidate_id, document_id, decision, tier, grade, reason, evidence_unit_ids, created_at
		FROM assertion_log WHERE candidate_id = ?`, candidateID)
	entry, err := scanLogEntrySQL(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "log entry %s", candidateID)
		}
		return nil, eris.Wrapf(err, "sqlite: get log entry %s", candidateID)
	}
	return entry, nil
}

func (s *SQLiteStore) ListLogEntries(ctx context.Context, filter LogFilter) ([]model.AssertionLogEntry, error) {
	query := `
		SELECT candidate_id, document_id, decision, tier, grade, reason, evidence_unit_ids, created_at
		FROM assertion_log WHERE 1=1`
	var args []any
	if filter.DocumentID != "" {
		query += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.Decision != "" {
		query += " AND decision = ?"
		args = append(args, string(filter.Decision))
	}
	if filter.Reason != "" {
		query += " AND reason = ?"
		args = append(args, string(filter.Reason))
	}
	query += " ORDER BY created_at ASC"
	query, args = applyPage(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list log entries")
	}
	defer rows.Close()

	var out []model.AssertionLogEntry
	for rows.Next() {
		entry, err := scanLogEntrySQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log entry")
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// WithCanonicalLock serializes merges of one canonical fact within this
// process using a keyed mutex.
func (s *SQLiteStore) WithCanonicalLock(ctx context.Context, canonicalID string, fn func(ctx context.Context) error) error {
	s.lockMu.Lock()
	mu, ok := s.locks[canonicalID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[canonicalID] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "sqlite: canonical lock")
	}
	return fn(ctx)
}

func applyPage(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInformationSQL(row rowScanner) (*model.Information, error) {
	var info model.Information
	var relation, grade, anchors string
	var tier int
	if err := row.Scan(&info.Fingerprint, &info.Subject, &info.Predicate, &info.Object,
		&relation, &tier, &grade, &info.Confidence, &anchors,
		&info.DocumentID, &info.CandidateID, &info.CreatedAt); err != nil {
		return nil, err
	}
	info.Relation = model.RelationType(relation)
	info.Tier = model.DefensibilityTier(tier)
	info.Grade = model.SemanticGrade(grade)
	if err := json.Unmarshal([]byte(anchors), &info.Anchors); err != nil {
		return nil, eris.Wrap(err, "unmarshal anchors")
	}
	return &info, nil
}

func scanLogEntrySQL(row rowScanner) (*model.AssertionLogEntry, error) {
	var entry model.AssertionLogEntry
	var decision, grade, reason, unitIDs string
	var tier int
	if err := row.Scan(&entry.CandidateID, &entry.DocumentID, &decision, &tier,
		&grade, &reason, &unitIDs, &entry.Timestamp); err != nil {
		return nil, err
	}
	entry.Decision = model.Decision(decision)
	entry.Tier = model.DefensibilityTier(tier)
	entry.Grade = model.SemanticGrade(grade)
	entry.Reason = model.ReasonCode(reason)
	if err := json.Unmarshal([]byte(unitIDs), &entry.EvidenceUnitIDs); err != nil {
		return nil, eris.Wrap(err, "unmarshal unit ids")
	}
	return &entry, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
