package policy

import (
	"fmt"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Engine applies tier attribution and the threshold table. It is stateless;
// one engine may serve any number of concurrent evaluations.
type Engine struct {
	table Table
}

// NewEngine creates a promotion engine over a validated table.
func NewEngine(table Table) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table}, nil
}

// AttributeTier computes the defensibility tier from extraction method,
// basis strength, and anchor quality. Computed once, never recomputed after
// promotion.
func AttributeTier(cand model.Candidate, anchors []model.Anchor) model.DefensibilityTier {
	if cand.Basis == model.BasisWeak {
		return model.TierDiscursive
	}
	allExact := len(anchors) > 0
	for _, a := range anchors {
		if !a.Exact {
			allExact = false
			break
		}
	}
	switch cand.Method {
	case model.MethodPattern:
		if allExact {
			return model.TierExplicit
		}
		return model.TierDiscursive
	case model.MethodGenerative:
		if allExact {
			return model.TierMixed
		}
		return model.TierDiscursive
	default:
		return model.TierDiscursive
	}
}

// AttributeGrade computes the semantic grade orthogonally to tier: how the
// evidence text relates to the anchored source.
func AttributeGrade(cand model.Candidate, anchors []model.Anchor) model.SemanticGrade {
	if cand.Basis == model.BasisWeak {
		return model.GradeInferred
	}
	for _, a := range anchors {
		if !a.Exact {
			return model.GradeParaphrase
		}
	}
	return model.GradeDirect
}

// Evaluate produces the promotion decision for a candidate that survived the
// gate chain and anchor resolution. It is total: every call returns a
// decision with a structured reason.
func (e *Engine) Evaluate(cand model.Candidate, bundle model.EvidenceBundle, anchors []model.Anchor) model.PromotionDecision {
	tier := AttributeTier(cand, anchors)
	grade := AttributeGrade(cand, anchors)
	pol := e.table[tier]
	conf := bundle.Confidence()

	// Causality is never accepted on discourse-pattern evidence alone,
	// regardless of confidence or corroboration.
	if tier == model.TierDiscursive && cand.Relation.Inferential() {
		return model.PromotionDecision{
			Decision: model.DecisionReject,
			Reason:   model.ReasonForbiddenRelation,
			Tier:     tier,
			Grade:    grade,
			Detail:   fmt.Sprintf("relation %s forbidden at tier %s", cand.Relation, tier),
		}
	}

	if conf < pol.MinConfidence {
		return model.PromotionDecision{
			Decision:   model.DecisionAbstain,
			Reason:     model.ReasonBelowThreshold,
			Tier:       tier,
			Grade:      grade,
			Confidence: conf * pol.Weight,
			Detail:     fmt.Sprintf("bundle confidence %.2f below %.2f", conf, pol.MinConfidence),
		}
	}

	if reason, ok := e.corroborated(pol, bundle); !ok {
		return model.PromotionDecision{
			Decision:   model.DecisionAbstain,
			Reason:     model.ReasonInsufficientCorroboration,
			Tier:       tier,
			Grade:      grade,
			Confidence: conf * pol.Weight,
			Detail:     reason,
		}
	}

	return model.PromotionDecision{
		Decision:   model.DecisionPromote,
		Reason:     model.ReasonPromoted,
		Tier:       tier,
		Grade:      grade,
		Confidence: conf * pol.Weight,
	}
}

// corroborated checks fragment count, document count, diversity, and the
// explicit-fragment requirement for one tier.
func (e *Engine) corroborated(pol TierPolicy, bundle model.EvidenceBundle) (string, bool) {
	frags := len(bundle.Fragments)
	docs := bundle.DistinctDocuments()

	// The weakest tier accepts either enough fragments or enough independent
	// documents; stronger tiers only set MinFragments.
	if pol.MinDocuments > 1 {
		if frags < pol.MinFragments && docs < pol.MinDocuments {
			return fmt.Sprintf("%d fragments and %d documents, need %d fragments or %d documents",
				frags, docs, pol.MinFragments, pol.MinDocuments), false
		}
	} else if frags < pol.MinFragments {
		return fmt.Sprintf("%d fragments, need %d", frags, pol.MinFragments), false
	}

	if pol.MinDiversity > 0 && bundle.Diversity() < pol.MinDiversity {
		return fmt.Sprintf("diversity %.2f below %.2f", bundle.Diversity(), pol.MinDiversity), false
	}

	if pol.RequireExplicitFragment {
		explicitBar := e.table[model.TierExplicit].MinConfidence
		supported := false
		for _, f := range bundle.Fragments {
			if f.Confidence >= explicitBar {
				supported = true
				break
			}
		}
		if !supported {
			return fmt.Sprintf("no fragment at or above the explicit confidence bar %.2f", explicitBar), false
		}
	}

	return "", true
}
