// Package store persists promoted information and the assertion log. Both
// writes are idempotent: an information upsert keyed by fingerprint is a
// no-op on repeat, and a log append for an already-decided candidate reports
// a duplicate instead of writing a second entry. Re-running a document
// against a warm store therefore changes nothing.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// ErrNotFound is returned by point lookups that match nothing.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicateLogEntry is returned when a candidate already has a recorded
// decision.
var ErrDuplicateLogEntry = eris.New("store: log entry already recorded for candidate")

// LogFilter narrows ListLogEntries. Zero fields match everything.
type LogFilter struct {
	DocumentID string           `json:"document_id,omitempty"`
	Decision   model.Decision   `json:"decision,omitempty"`
	Reason     model.ReasonCode `json:"reason,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// InfoFilter narrows ListInformation. Zero fields match everything.
type InfoFilter struct {
	CanonicalID string                  `json:"canonical_id,omitempty"`
	DocumentID  string                  `json:"document_id,omitempty"`
	Tier        model.DefensibilityTier `json:"tier,omitempty"`
	Limit       int                     `json:"limit,omitempty"`
	Offset      int                     `json:"offset,omitempty"`
}

// Store is the persistence boundary for a pass.
type Store interface {
	// UpsertInformation writes a promoted fact keyed by fingerprint.
	// Returns true when a new row was created, false when the fingerprint
	// already existed. The existing row is never modified.
	UpsertInformation(ctx context.Context, info model.Information) (bool, error)
	// GetInformation returns the fact with the given fingerprint, or
	// ErrNotFound.
	GetInformation(ctx context.Context, fingerprint string) (*model.Information, error)
	// ListInformation returns facts matching the filter, newest first.
	ListInformation(ctx context.Context, filter InfoFilter) ([]model.Information, error)

	// AppendLogEntry records one candidate's decision. Returns
	// ErrDuplicateLogEntry when the candidate already has one.
	AppendLogEntry(ctx context.Context, entry model.AssertionLogEntry) error
	// GetLogEntry returns the entry for a candidate, or ErrNotFound.
	GetLogEntry(ctx context.Context, candidateID string) (*model.AssertionLogEntry, error)
	// ListLogEntries returns entries matching the filter in append order.
	ListLogEntries(ctx context.Context, filter LogFilter) ([]model.AssertionLogEntry, error)

	// WithCanonicalLock runs fn while holding an exclusive lock on the
	// canonical id, serializing consolidation merges of the same fact.
	WithCanonicalLock(ctx context.Context, canonicalID string, fn func(ctx context.Context) error) error

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error
	Close() error
}
