package model

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionMethod identifies which strategy produced a candidate.
type ExtractionMethod string

const (
	// MethodPattern marks candidates produced by the deterministic trigger
	// vocabulary. High precision, low recall.
	MethodPattern ExtractionMethod = "pattern"
	// MethodGenerative marks candidates produced by the external proposer.
	MethodGenerative ExtractionMethod = "generative"
)

// AssertionKind distinguishes plain assertions from typed relations.
type AssertionKind string

const (
	KindAssertion AssertionKind = "assertion"
	KindRelation  AssertionKind = "relation"
)

// RelationType classifies the semantic relation a candidate asserts.
type RelationType string

const (
	RelationNone        RelationType = ""
	RelationCausal      RelationType = "causal"
	RelationDefinition  RelationType = "definition"
	RelationTemporal    RelationType = "temporal"
	RelationContrast    RelationType = "contrast"
	RelationElaboration RelationType = "elaboration"
	RelationImplication RelationType = "implication"
)

// Inferential reports whether the relation type asserts causality or another
// strong inference. Such relations are quarantined at the weakest tier.
func (r RelationType) Inferential() bool {
	return r == RelationCausal || r == RelationImplication
}

// BasisStrength describes how deterministic the supporting basis of a
// candidate is. Pattern triggers give a strong basis; a downgraded predicate
// or an approximate anchor weakens it.
type BasisStrength string

const (
	BasisStrong BasisStrength = "strong"
	BasisWeak   BasisStrength = "weak"
)

// Candidate is a raw assertion or relation proposed for promotion. It is
// created once per generation attempt and never mutated: a rejected candidate
// is superseded by a new one, not edited.
type Candidate struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Kind       AssertionKind    `json:"kind"`
	Subject    string           `json:"subject"`
	Predicate  string           `json:"predicate"`
	Object     string           `json:"object"`
	ConceptRef string           `json:"concept_ref,omitempty"`
	Evidence   string           `json:"evidence"`
	UnitIDs    []string         `json:"unit_ids"`
	Method     ExtractionMethod `json:"method"`
	Relation   RelationType     `json:"relation,omitempty"`
	Basis      BasisStrength    `json:"basis"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewCandidate creates a candidate with a fresh id and timestamp.
func NewCandidate(documentID string, kind AssertionKind, method ExtractionMethod) Candidate {
	return Candidate{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Kind:       kind,
		Method:     method,
		Basis:      BasisStrong,
		CreatedAt:  time.Now().UTC(),
	}
}

// DedupKey returns the key used to detect pattern/generative overlap on the
// same span: relation type plus the cited unit ids in order.
func (c Candidate) DedupKey() string {
	key := string(c.Relation) + "|"
	for i, id := range c.UnitIDs {
		if i > 0 {
			key += ","
		}
		key += id
	}
	return key
}
