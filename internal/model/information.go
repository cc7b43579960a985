package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Information is a persisted fact in the knowledge graph. It is created only
// by a PROMOTE decision, owns at least one anchor, and is never deleted by
// the engine: supersession is a new Information plus an explicit relation.
type Information struct {
	// Fingerprint is the deterministic identity used for idempotent graph
	// upserts: a repeated write with identical content is a no-op.
	Fingerprint string            `json:"fingerprint"`
	Subject     string            `json:"subject"`
	Predicate   string            `json:"predicate"`
	Object      string            `json:"object"`
	Relation    RelationType      `json:"relation,omitempty"`
	Tier        DefensibilityTier `json:"tier"`
	Grade       SemanticGrade     `json:"grade"`
	Confidence  float64           `json:"confidence"`
	Anchors     []Anchor          `json:"anchors"`
	DocumentID  string            `json:"document_id"`
	CandidateID string            `json:"candidate_id"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Validate enforces the Information invariants: a fingerprint, a non-empty
// triple, and at least one valid anchor pointing at a structural item.
func (i Information) Validate() error {
	if i.Fingerprint == "" {
		return fmt.Errorf("information: missing fingerprint")
	}
	if i.Subject == "" || i.Predicate == "" || i.Object == "" {
		return fmt.Errorf("information %s: incomplete triple", i.Fingerprint)
	}
	if len(i.Anchors) == 0 {
		return fmt.Errorf("information %s: no anchors", i.Fingerprint)
	}
	for _, a := range i.Anchors {
		if !a.Valid() {
			return fmt.Errorf("information %s: invalid anchor on item %q", i.Fingerprint, a.ItemID)
		}
	}
	return nil
}

// Fingerprint computes the deterministic identity of a fact from its triple
// and tier. Whitespace is collapsed and case is folded so that trivially
// re-serialized candidates key to the same graph node.
func Fingerprint(subject, predicate, object string, tier DefensibilityTier) string {
	h := sha256.New()
	for _, part := range []string{canonField(subject), canonField(predicate), canonField(object), tier.String()} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalID computes the tier-independent identity used to merge equivalent
// facts across documents during corpus consolidation.
func CanonicalID(subject, predicate, object string) string {
	h := sha256.New()
	for _, part := range []string{canonField(subject), canonField(predicate), canonField(object)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func canonField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
