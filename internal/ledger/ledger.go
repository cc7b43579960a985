// Package ledger records the fate of every evaluated candidate. The log is
// append-only and write-once per candidate: a decision, once recorded, is
// never amended or overwritten, and re-running a document must not produce a
// second entry for the same candidate.
package ledger

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// ErrDuplicateEntry is returned when a second entry is appended for a
// candidate id that already has one.
var ErrDuplicateEntry = eris.New("ledger: entry already recorded for candidate")

// Log is the append-only decision record. Implementations must reject a
// second append for the same candidate id.
type Log interface {
	// Append records the entry. Returns ErrDuplicateEntry if the candidate
	// already has one.
	Append(entry model.AssertionLogEntry) error
	// ByCandidate returns the entry for a candidate id, if any.
	ByCandidate(candidateID string) (model.AssertionLogEntry, bool)
	// ByDocument returns all entries for a document in append order.
	ByDocument(documentID string) []model.AssertionLogEntry
	// ByDecision returns all entries with the given decision in append order.
	ByDecision(decision model.Decision) []model.AssertionLogEntry
	// Len returns the number of recorded entries.
	Len() int
}

// NewEntry builds the log entry for one decided candidate. The timestamp is
// taken at decision time, not at append time.
func NewEntry(cand model.Candidate, decision model.PromotionDecision) model.AssertionLogEntry {
	return model.AssertionLogEntry{
		CandidateID:     cand.ID,
		DocumentID:      cand.DocumentID,
		Decision:        decision.Decision,
		Tier:            decision.Tier,
		Grade:           decision.Grade,
		Reason:          decision.Reason,
		EvidenceUnitIDs: cand.UnitIDs,
		Timestamp:       time.Now().UTC(),
	}
}

// Memory is an in-process Log. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries []model.AssertionLogEntry
	byID    map[string]int
}

// NewMemory returns an empty in-process log.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(entry model.AssertionLogEntry) error {
	if entry.CandidateID == "" {
		return eris.New("ledger: entry missing candidate id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[entry.CandidateID]; ok {
		zap.L().Debug("duplicate ledger append suppressed",
			zap.String("candidate_id", entry.CandidateID))
		return ErrDuplicateEntry
	}
	m.byID[entry.CandidateID] = len(m.entries)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) ByCandidate(candidateID string) (model.AssertionLogEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[candidateID]
	if !ok {
		return model.AssertionLogEntry{}, false
	}
	return m.entries[i], true
}

func (m *Memory) ByDocument(documentID string) []model.AssertionLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AssertionLogEntry
	for _, e := range m.entries {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) ByDecision(decision model.Decision) []model.AssertionLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AssertionLogEntry
	for _, e := range m.entries {
		if e.Decision == decision {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
