package model

// DefensibilityTier is the ordered classification of how directly evidence
// supports a claim. Higher values are stronger. The set is closed: adding a
// tier is a compile-time change to this enum and the policy threshold table.
type DefensibilityTier int

const (
	// TierDiscursive is the weakest tier: discourse-pattern or weakly
	// supported generative evidence.
	TierDiscursive DefensibilityTier = iota + 1
	// TierMixed combines generative extraction with exact anchor support.
	TierMixed
	// TierExplicit is the strongest tier: deterministic pattern extraction
	// with a strong basis.
	TierExplicit
)

func (t DefensibilityTier) String() string {
	switch t {
	case TierExplicit:
		return "explicit"
	case TierMixed:
		return "mixed"
	case TierDiscursive:
		return "discursive"
	default:
		return "unknown"
	}
}

// StrongerThan reports whether t outranks other.
func (t DefensibilityTier) StrongerThan(other DefensibilityTier) bool {
	return t > other
}

// Tiers lists all tiers from weakest to strongest.
func Tiers() []DefensibilityTier {
	return []DefensibilityTier{TierDiscursive, TierMixed, TierExplicit}
}

// SemanticGrade is a finer-grained quality label orthogonal to tier: how the
// cited evidence text relates to the source item.
type SemanticGrade string

const (
	// GradeDirect: the evidence is a verbatim span of the anchored item.
	GradeDirect SemanticGrade = "direct"
	// GradeParaphrase: the evidence matched the item only approximately.
	GradeParaphrase SemanticGrade = "paraphrase"
	// GradeInferred: the claim is supported but not stated by the evidence.
	GradeInferred SemanticGrade = "inferred"
)
