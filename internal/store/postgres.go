package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the query paths testable without a live database.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool pgxPool
}

// PoolConfig holds optional connection pool tuning.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS information (
	fingerprint  TEXT PRIMARY KEY,
	canonical_id TEXT NOT NULL,
	subject      TEXT NOT NULL,
	predicate    TEXT NOT NULL,
	object       TEXT NOT NULL,
	relation     TEXT NOT NULL DEFAULT '',
	tier         INT NOT NULL,
	grade        TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	anchors      JSONB NOT NULL,
	document_id  TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assertion_log (
	candidate_id      TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL,
	decision          TEXT NOT NULL,
	tier              INT NOT NULL DEFAULT 0,
	grade             TEXT NOT NULL DEFAULT '',
	reason            TEXT NOT NULL,
	evidence_unit_ids JSONB NOT NULL DEFAULT '[]',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_information_canonical_id ON information(canonical_id);
CREATE INDEX IF NOT EXISTS idx_information_document_id ON information(document_id);
CREATE INDEX IF NOT EXISTS idx_assertion_log_document_id ON assertion_log(document_id);
CREATE INDEX IF NOT EXISTS idx_assertion_log_decision ON assertion_log(decision);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity for health endpoints.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) UpsertInformation(ctx context.Context, info model.Information) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, eris.Wrap(err, "postgres: upsert information")
	}
	anchors, err := json.Marshal(info.Anchors)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal anchors")
	}
	canonical := model.CanonicalID(info.Subject, info.Predicate, info.Object)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO information
			(fingerprint, canonical_id, subject, predicate, object, relation,
			 tier, grade, confidence, anchors, document_id, candidate_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (fingerprint) DO NOTHING`,
		info.Fingerprint, canonical, info.Subject, info.Predicate, info.Object,
		string(info.Relation), int(info.Tier), string(info.Grade), info.Confidence,
		anchors, info.DocumentID, info.CandidateID, info.CreatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert information %s", info.Fingerprint)
	}
	return tag.RowsAffected() == 1, nil
}

const informationColumns = `fingerprint, subject, predicate, object, relation,
	tier, grade, confidence, anchors, document_id, candidate_id, created_at`

func (s *PostgresStore) GetInformation(ctx context.Context, fingerprint string) (*model.Information, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+informationColumns+` FROM information WHERE fingerprint = $1`,
		fingerprint)
	info, err := scanInformation(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "information %s", fingerprint)
		}
		return nil, eris.Wrapf(err, "postgres: get information %s", fingerprint)
	}
	return info, nil
}

func (s *PostgresStore) ListInformation(ctx context.Context, filter InfoFilter) ([]model.Information, error) {
	query := `SELECT ` + informationColumns + ` FROM information WHERE 1=1`
	var args []any
	if filter.CanonicalID != "" {
		args = append(args, filter.CanonicalID)
		query += fmt.Sprintf(" AND canonical_id = $%d", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	if filter.Tier != 0 {
		args = append(args, int(filter.Tier))
		query += fmt.Sprintf(" AND tier = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list information")
	}
	defer rows.Close()

	var out []model.Information
	for rows.Next() {
		info, err := scanInformation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan information")
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendLogEntry(ctx context.Context, entry model.AssertionLogEntry) error {
	if entry.CandidateID == "" {
		return eris.New("postgres: log entry missing candidate id")
	}
	unitIDs, err := json.Marshal(entry.EvidenceUnitIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unit ids")
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO assertion_log
			(candidate_id, document_id, decision, tier, grade, reason, evidence_unit_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (candidate_id) DO NOTHING`,
		entry.CandidateID, entry.DocumentID, string(entry.Decision), int(entry.Tier),
		string(entry.Grade), string(entry.Reason), unitIDs, entry.Timestamp)
	if err != nil {
		return eris.Wrapf(err, "postgres: append log entry %s", entry.CandidateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicateLogEntry, "candidate %s", entry.CandidateID)
	}
	return nil
}

const logColumns = `candidate_id, document_id, decision, tier, grade, reason, evidence_unit_ids, created_at`

func (s *PostgresStore) GetLogEntry(ctx context.Context, candidateID string) (*model.AssertionLogEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM assertion_log WHERE candidate_id = $1`,
		candidateID)
	entry, err := scanLogEntry(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "log entry %s", candidateID)
		}
		return nil, eris.Wrapf(err, "postgres: get log entry %s", candidateID)
	}
	return entry, nil
}

func (s *PostgresStore) ListLogEntries(ctx context.Context, filter LogFilter) ([]model.AssertionLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM assertion_log WHERE 1=1`
	var args []any
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	if filter.Decision != "" {
		args = append(args, string(filter.Decision))
		query += fmt.Sprintf(" AND decision = $%d", len(args))
	}
	if filter.Reason != "" {
		args = append(args, string(filter.Reason))
		query += fmt.Sprintf(" AND reason = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list log entries")
	}
	defer rows.Close()

	var out []model.AssertionLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan log entry")
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// WithCanonicalLock serializes consolidation of one canonical fact across
// processes using a transaction-scoped advisory lock. The lock is released
// when the transaction ends either way.
func (s *PostgresStore) WithCanonicalLock(ctx context.Context, canonicalID string, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin lock tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, canonicalID); err != nil {
		return eris.Wrapf(err, "postgres: advisory lock %s", canonicalID)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit lock tx")
	}
	return nil
}

func scanInformation(row pgx.Row) (*model.Information, error) {
	var info model.Information
	var relation, grade string
	var tier int
	var anchors []byte
	if err := row.Scan(&info.Fingerprint, &info.Subject, &info.Predicate, &info.Object,
		&relation, &tier, &grade, &info.Confidence, &anchors,
		&info.DocumentID, &info.CandidateID, &info.CreatedAt); err != nil {
		return nil, err
	}
	info.Relation = model.RelationType(relation)
	info.Tier = model.DefensibilityTier(tier)
	info.Grade = model.SemanticGrade(grade)
	if err := json.Unmarshal(anchors, &info.Anchors); err != nil {
		return nil, eris.Wrap(err, "unmarshal anchors")
	}
	return &info, nil
}

func scanLogEntry(row pgx.Row) (*model.AssertionLogEntry, error) {
	var entry model.AssertionLogEntry
	var decision, grade, reason string
	var tier int
	var unitIDs []byte
	if err := row.Scan(&entry.CandidateID, &entry.DocumentID, &decision, &tier,
		&grade, &reason, &unitIDs, &entry.Timestamp); err != nil {
		return nil, err
	}
	entry.Decision = model.Decision(decision)
	entry.Tier = model.DefensibilityTier(tier)
	entry.Grade = model.SemanticGrade(grade)
	entry.Reason = model.ReasonCode(reason)
	if err := json.Unmarshal(unitIDs, &entry.EvidenceUnitIDs); err != nil {
		return nil, eris.Wrap(err, "unmarshal unit ids")
	}
	return &entry, nil
}
