package model

import "time"

// Decision is the terminal outcome for a candidate. Abstention is distinct
// from rejection: an abstained claim may be true but is not yet defensible.
type Decision string

const (
	DecisionPromote Decision = "PROMOTE"
	DecisionAbstain Decision = "ABSTAIN"
	DecisionReject  Decision = "REJECT"
)

// ReasonCode is the closed enumeration of structured decision reasons. Every
// decision carries exactly one; free text is never the only record.
type ReasonCode string

const (
	ReasonPromoted ReasonCode = "PROMOTED"

	// Rejections: the candidate failed a gate and is discarded.
	ReasonFabrication       ReasonCode = "TEMPLATE_OR_FABRICATION"
	ReasonTautology         ReasonCode = "REJECT_TAUTOLOGY"
	ReasonTemplateLeak      ReasonCode = "REJECT_TEMPLATE_LEAK"
	ReasonInvalidPredicate  ReasonCode = "REJECT_INVALID_PREDICATE"
	ReasonDiscontinuous     ReasonCode = "REJECT_DISCONTINUOUS"
	ReasonCrossItem         ReasonCode = "CROSS_ITEM"
	ReasonNoAnchor          ReasonCode = "NO_ITEM_ANCHOR"
	ReasonForbiddenRelation ReasonCode = "REJECT_FORBIDDEN_RELATION"

	// Abstentions: not yet defensible, pending better evidence.
	ReasonAmbiguousAnchor           ReasonCode = "AMBIGUOUS_ANCHOR"
	ReasonBelowThreshold            ReasonCode = "ABSTAIN_BELOW_THRESHOLD"
	ReasonInsufficientCorroboration ReasonCode = "ABSTAIN_INSUFFICIENT_CORROBORATION"
	ReasonBudgetExhausted           ReasonCode = "ABSTAIN_BUDGET_EXHAUSTED"
	ReasonProposerTimeout           ReasonCode = "ABSTAIN_PROPOSER_TIMEOUT"
	ReasonProposerUnavailable       ReasonCode = "ABSTAIN_PROPOSER_UNAVAILABLE"
	ReasonMalformedProposal         ReasonCode = "ABSTAIN_MALFORMED_PROPOSAL"
)

// DecisionFor returns the decision class a reason code belongs to.
func DecisionFor(reason ReasonCode) Decision {
	switch reason {
	case ReasonPromoted:
		return DecisionPromote
	case ReasonAmbiguousAnchor, ReasonBelowThreshold, ReasonInsufficientCorroboration,
		ReasonBudgetExhausted, ReasonProposerTimeout, ReasonProposerUnavailable,
		ReasonMalformedProposal:
		return DecisionAbstain
	default:
		return DecisionReject
	}
}

// PromotionDecision is the complete outcome for one candidate. One is always
// produced per evaluated candidate; a silent drop is a bug.
type PromotionDecision struct {
	Decision   Decision          `json:"decision"`
	Reason     ReasonCode        `json:"reason"`
	Tier       DefensibilityTier `json:"tier,omitempty"`
	Grade      SemanticGrade     `json:"grade,omitempty"`
	Confidence float64           `json:"confidence"`
	// Detail is optional operator-facing context. The reason code is the
	// record; detail never substitutes for it.
	Detail string `json:"detail,omitempty"`
}

// Promoted reports whether the decision promotes the candidate.
func (d PromotionDecision) Promoted() bool {
	return d.Decision == DecisionPromote
}

// AssertionLogEntry is the append-only record of one candidate's fate.
// Exactly one entry exists per candidate ever evaluated.
type AssertionLogEntry struct {
	CandidateID     string            `json:"candidate_id"`
	DocumentID      string            `json:"document_id"`
	Decision        Decision          `json:"decision"`
	Tier            DefensibilityTier `json:"tier,omitempty"`
	Grade           SemanticGrade     `json:"grade,omitempty"`
	Reason          ReasonCode        `json:"reason"`
	EvidenceUnitIDs []string          `json:"evidence_unit_ids,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}
