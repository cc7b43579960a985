package gates

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Verb classes that carry no standalone semantic content. A predicate made
// only of these asserts nothing about the world on its own.
var (
	copulaVerbs = map[string]bool{
		"is": true, "are": true, "was": true, "were": true, "am": true,
		"be": true, "been": true, "being": true,
		"do": true, "does": true, "did": true,
		"has": true, "have": true, "had": true,
	}
	modalVerbs = map[string]bool{
		"may": true, "might": true, "could": true, "would": true,
		"shall": true, "should": true, "can": true, "will": true, "must": true,
	}
	intentionalVerbs = map[string]bool{
		"wants": true, "want": true, "hopes": true, "hope": true,
		"intends": true, "intend": true, "plans": true, "plan": true,
		"wishes": true, "wish": true, "aims": true, "aim": true,
		"seeks": true, "seek": true, "tries": true, "try": true,
	}
)

// PredicateGate checks that the asserted predicate has standalone semantic
// content. A predicate consisting only of auxiliaries or copulas is rejected;
// a modal or intentional predicate downgrades the candidate's basis to weak
// and lets it continue, where the weaker tier's corroboration rules apply.
type PredicateGate struct{}

// NewPredicateGate creates the predicate validity gate.
func NewPredicateGate() *PredicateGate {
	return &PredicateGate{}
}

func (g *PredicateGate) Name() string { return "predicate" }

func (g *PredicateGate) Check(_ context.Context, cand model.Candidate, _ model.EvidenceBundle, _ *index.Index) Verdict {
	tokens := predicateTokens(cand.Predicate)
	if len(tokens) == 0 {
		return Stop(model.ReasonInvalidPredicate, "empty predicate")
	}

	allCopula := true
	hasModal := false
	hasIntentional := false
	for _, tok := range tokens {
		if !copulaVerbs[tok] {
			allCopula = false
		}
		if modalVerbs[tok] {
			hasModal = true
		}
		if intentionalVerbs[tok] {
			hasIntentional = true
		}
	}

	if allCopula {
		return Stop(model.ReasonInvalidPredicate, fmt.Sprintf("predicate %q is auxiliary/copula only", cand.Predicate))
	}

	if hasModal || hasIntentional {
		if cand.Basis == model.BasisWeak {
			return Pass() // already downgraded
		}
		amended := cand
		amended.Basis = model.BasisWeak
		return Verdict{
			Amended: &amended,
			Detail:  fmt.Sprintf("modal/intentional predicate %q, basis downgraded", cand.Predicate),
		}
	}

	return Pass()
}

func predicateTokens(predicate string) []string {
	fields := strings.Fields(strings.ToLower(predicate))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?'\"")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
