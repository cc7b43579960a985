package generate

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// relationTrigger binds one discourse marker to the relation it signals and
// the predicate the resulting candidate carries.
type relationTrigger struct {
	relation  model.RelationType
	predicate string
	pattern   *regexp.Regexp
}

// triggerVocabulary is the fixed marker set. Each pattern captures the text
// on both sides of the marker; a trigger with an empty side never fires.
var triggerVocabulary = []relationTrigger{
	{model.RelationCausal, "causes", regexp.MustCompile(`(?i)^(.+?)\s+causes?\s+(.+)$`)},
	{model.RelationCausal, "leads to", regexp.MustCompile(`(?i)^(.+?)\s+leads?\s+to\s+(.+)$`)},
	{model.RelationCausal, "results in", regexp.MustCompile(`(?i)^(.+?)\s+results?\s+in\s+(.+)$`)},
	{model.RelationCausal, "is caused by", regexp.MustCompile(`(?i)^(.+?)\s+because\s+of\s+(.+)$`)},
	{model.RelationDefinition, "is defined as", regexp.MustCompile(`(?i)^(.+?)\s+is\s+defined\s+as\s+(.+)$`)},
	{model.RelationDefinition, "means", regexp.MustCompile(`(?i)^(.+?)\s+means\s+(.+)$`)},
	{model.RelationDefinition, "refers to", regexp.MustCompile(`(?i)^(.+?)\s+refers\s+to\s+(.+)$`)},
	{model.RelationTemporal, "precedes", regexp.MustCompile(`(?i)^(.+?)\s+before\s+(.+)$`)},
	{model.RelationTemporal, "follows", regexp.MustCompile(`(?i)^(.+?)\s+after\s+(.+)$`)},
	{model.RelationTemporal, "occurs during", regexp.MustCompile(`(?i)^(.+?)\s+during\s+(.+)$`)},
	{model.RelationContrast, "contrasts with", regexp.MustCompile(`(?i)^(.+?),?\s+whereas\s+(.+)$`)},
	{model.RelationContrast, "contrasts with", regexp.MustCompile(`(?i)^(.+?),?\s+in\s+contrast\s+to\s+(.+)$`)},
	{model.RelationContrast, "contrasts with", regexp.MustCompile(`(?i)^(.+?),?\s+although\s+(.+)$`)},
	{model.RelationElaboration, "is exemplified by", regexp.MustCompile(`(?i)^(.+?),\s+for\s+example,?\s+(.+)$`)},
	{model.RelationElaboration, "is specified as", regexp.MustCompile(`(?i)^(.+?),\s+specifically,?\s+(.+)$`)},
	{model.RelationElaboration, "is specified as", regexp.MustCompile(`(?i)^(.+?),\s+namely,?\s+(.+)$`)},
	{model.RelationImplication, "implies", regexp.MustCompile(`(?i)^(.+?)\s+implies\s+(.+)$`)},
	{model.RelationImplication, "suggests", regexp.MustCompile(`(?i)^(.+?)\s+suggests\s+that\s+(.+)$`)},
}

// factualIndicators raise the pattern score when present in the sentence.
var factualIndicators = []string{
	"according to", "research shows", "studies indicate", "data reveals",
	"evidence suggests", "findings indicate", "results show", "measurements show",
	"records indicate", "observations confirm",
}

// opinionIndicators lower the pattern score.
var opinionIndicators = []string{
	"think", "believe", "feel", "seems", "appears", "arguably", "in my view",
}

// PatternStrategy extracts candidates deterministically from one indexed
// document. Every emitted candidate cites a single unit and carries the
// matched sentence verbatim as evidence.
type PatternStrategy struct {
	minSideLen int
}

// NewPatternStrategy returns the strategy with default settings.
func NewPatternStrategy() *PatternStrategy {
	return &PatternStrategy{minSideLen: 3}
}

// Extract runs the trigger vocabulary over every unit. No trigger, no
// candidate.
func (s *PatternStrategy) Extract(ix *index.Index) []Extraction {
	var out []Extraction
	for _, item := range ix.Items() {
		for _, sentence := range splitSentences(item.Text) {
			out = append(out, s.matchSentence(ix.DocumentID(), item, sentence)...)
		}
	}
	if len(out) > 0 {
		zap.L().Debug("pattern extraction complete",
			zap.String("document_id", ix.DocumentID()),
			zap.Int("candidates", len(out)))
	}
	return dedupe(out)
}

func (s *PatternStrategy) matchSentence(documentID string, item model.StructuralItem, sentence string) []Extraction {
	var out []Extraction
	for _, trig := range triggerVocabulary {
		m := trig.pattern.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		subject := cleanSide(m[1])
		object := cleanSide(m[2])
		if len(subject) < s.minSideLen || len(object) < s.minSideLen {
			continue
		}

		cand := model.NewCandidate(documentID, model.KindRelation, model.MethodPattern)
		cand.Subject = subject
		cand.Predicate = trig.predicate
		cand.Object = object
		cand.Relation = trig.relation
		cand.Evidence = sentence
		cand.UnitIDs = []string{item.ID}

		out = append(out, Extraction{
			Candidate: cand,
			Bundle: model.EvidenceBundle{Fragments: []model.EvidenceFragment{{
				Span:       sentence,
				UnitID:     item.ID,
				DocumentID: documentID,
				Confidence: scoreSentence(sentence, subject, object),
			}}},
		})
	}
	return out
}

// scoreSentence rates how factual the matched sentence reads. The score
// feeds the evidence fragment, where the min rule picks it up.
func scoreSentence(sentence, subject, object string) float64 {
	score := 0.5
	lower := strings.ToLower(sentence)
	for _, ind := range factualIndicators {
		if strings.Contains(lower, ind) {
			score += 0.15
			break
		}
	}
	for _, ind := range opinionIndicators {
		if strings.Contains(lower, ind) {
			score -= 0.2
			break
		}
	}
	if hasProperNoun(subject) {
		score += 0.1
	}
	if hasProperNoun(object) {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func hasProperNoun(text string) bool {
	for _, word := range strings.Fields(text) {
		if len(word) > 1 && word[0] >= 'A' && word[0] <= 'Z' {
			return true
		}
	}
	return false
}

// cleanSide trims a captured side down to its content. The evidence sentence
// stays verbatim; only the triple fields are cleaned.
func cleanSide(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"the ", "The ", "a ", "A ", "an ", "An "} {
		if strings.HasPrefix(text, prefix) {
			text = text[len(prefix):]
			break
		}
	}
	return strings.Trim(text, " .,;:")
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)

// splitSentences returns exact substrings of text, terminators included, so
// that every sentence is verbatim-checkable against its unit.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); len(s) > 10 {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); len(s) > 10 {
		out = append(out, s)
	}
	return out
}

// dedupe drops repeated triples from the same unit, keeping the first.
func dedupe(in []Extraction) []Extraction {
	seen := make(map[string]bool, len(in))
	var out []Extraction
	for _, ex := range in {
		key := strings.ToLower(ex.Candidate.Subject) + "|" +
			string(ex.Candidate.Relation) + "|" +
			strings.ToLower(ex.Candidate.Object) + "|" +
			strings.Join(ex.Candidate.UnitIDs, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ex)
	}
	return out
}
