package gates

import (
	"context"
	"fmt"
	"regexp"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// templatePatterns is the regex family matching unresolved placeholders and
// boilerplate that leaked from a template into a candidate field.
var templatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`),
	regexp.MustCompile(`\[(?i:insert|placeholder|tbd|todo)[^\]]*\]`),
	regexp.MustCompile(`(?i)\blorem ipsum\b`),
	regexp.MustCompile(`%[sdvq]\b`),
	regexp.MustCompile(`\bX{4,}\b`),
}

// TemplateGate detects template leakage. A leak in an essential field
// (subject, predicate, object, evidence) rejects the candidate; a leak
// confined to a non-essential field strips that field and lets the candidate
// continue.
type TemplateGate struct{}

// NewTemplateGate creates the template leak gate.
func NewTemplateGate() *TemplateGate {
	return &TemplateGate{}
}

func (g *TemplateGate) Name() string { return "template" }

func (g *TemplateGate) Check(_ context.Context, cand model.Candidate, _ model.EvidenceBundle, _ *index.Index) Verdict {
	essential := map[string]string{
		"subject":   cand.Subject,
		"predicate": cand.Predicate,
		"object":    cand.Object,
		"evidence":  cand.Evidence,
	}
	for field, text := range essential {
		if pat := leakIn(text); pat != "" {
			return Stop(model.ReasonTemplateLeak, fmt.Sprintf("unresolved template in %s: %s", field, pat))
		}
	}

	// Non-essential field: discard the attribute, keep the candidate.
	if pat := leakIn(cand.ConceptRef); pat != "" {
		amended := cand
		amended.ConceptRef = ""
		return Verdict{
			Amended: &amended,
			Detail:  fmt.Sprintf("discarded concept_ref: %s", pat),
		}
	}

	return Pass()
}

// leakIn returns the matched leak text, or "" when the field is clean.
func leakIn(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range templatePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
