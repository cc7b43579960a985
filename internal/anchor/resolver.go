// Package anchor maps a candidate's cited span back to exactly one structural
// item. A span that matches nothing, straddles two items, or matches several
// items equally well never produces an anchor; each case carries its own
// terminal reason code.
package anchor

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/unicode/norm"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Similarity thresholds. An exact verbatim containment scores 1.0; matches at
// or above ExactThreshold are tagged exact, matches at or above
// ApproxThreshold are tagged approximate, anything lower does not anchor.
const (
	DefaultExactThreshold  = 0.98
	DefaultApproxThreshold = 0.85
	// ambiguityEpsilon: a second item scoring within this of the best match
	// makes the anchor ambiguous.
	ambiguityEpsilon = 0.02
)

// Resolution is the outcome of resolving one span. Reason is empty when the
// span anchored; otherwise it names the terminal case.
type Resolution struct {
	Anchor     model.Anchor
	Grade      model.SemanticGrade
	Similarity float64
	Reason     model.ReasonCode
	Detail     string
}

// Resolved reports whether the span anchored to an item.
func (r Resolution) Resolved() bool {
	return r.Reason == ""
}

// Resolver resolves spans against a document's anchor index. Resolutions are
// memoized per (document, span) since the index is immutable.
type Resolver struct {
	exactThreshold  float64
	approxThreshold float64
	cache           *gocache.Cache
}

// NewResolver creates a resolver; non-positive thresholds use the defaults.
func NewResolver(exactThreshold, approxThreshold float64) *Resolver {
	if exactThreshold <= 0 || exactThreshold > 1 {
		exactThreshold = DefaultExactThreshold
	}
	if approxThreshold <= 0 || approxThreshold > exactThreshold {
		approxThreshold = DefaultApproxThreshold
	}
	return &Resolver{
		exactThreshold:  exactThreshold,
		approxThreshold: approxThreshold,
		cache:           gocache.New(10*time.Minute, 5*time.Minute),
	}
}

// Resolve maps span to one structural item in the index.
func (r *Resolver) Resolve(ix *index.Index, span string) Resolution {
	if span == "" {
		return Resolution{Reason: model.ReasonNoAnchor, Detail: "empty span"}
	}

	key := ix.DocumentID() + "\x00" + span
	if cached, ok := r.cache.Get(key); ok {
		return cached.(Resolution)
	}

	res := r.resolve(ix, span)
	r.cache.Set(key, res, gocache.DefaultExpiration)
	return res
}

func (r *Resolver) resolve(ix *index.Index, span string) Resolution {
	items := ix.Items()

	// Exact containment wins outright and cannot be ambiguous with a fuzzy
	// match: the verbatim item is the owner.
	var exact []model.StructuralItem
	for _, it := range items {
		if it.Contains(span) {
			exact = append(exact, it)
		}
	}
	if len(exact) > 1 {
		return Resolution{
			Reason: model.ReasonAmbiguousAnchor,
			Detail: fmt.Sprintf("span is verbatim in %d items", len(exact)),
		}
	}
	if len(exact) == 1 {
		start, end := exact[0].SpanOffsets(span)
		return Resolution{
			Anchor:     model.Anchor{ItemID: exact[0].ID, Start: start, End: end, Exact: true},
			Grade:      model.GradeDirect,
			Similarity: 1.0,
		}
	}

	// Cross-item: the span is only reconstructable by concatenating two
	// adjacent items. Such a span is never anchored and never truncated to
	// one of the items.
	for i := 0; i+1 < len(items); i++ {
		if straddles(items[i].Text, items[i+1].Text, span) {
			return Resolution{
				Reason: model.ReasonCrossItem,
				Detail: fmt.Sprintf("span straddles items %s and %s", items[i].ID, items[i+1].ID),
			}
		}
	}

	// Fuzzy pass: trigram containment over normalized text.
	spanGrams := trigrams(normalize(span))
	if len(spanGrams) == 0 {
		return Resolution{Reason: model.ReasonNoAnchor, Detail: "span too short to match"}
	}

	best, second := -1.0, -1.0
	var bestItem model.StructuralItem
	for _, it := range items {
		sim := containment(spanGrams, trigrams(normalize(it.Text)))
		if sim > best {
			second = best
			best = sim
			bestItem = it
		} else if sim > second {
			second = sim
		}
	}

	if best < r.approxThreshold {
		return Resolution{
			Reason: model.ReasonNoAnchor,
			Detail: fmt.Sprintf("best similarity %.3f below %.3f", best, r.approxThreshold),
		}
	}
	if second >= r.approxThreshold && best-second < ambiguityEpsilon {
		return Resolution{
			Reason: model.ReasonAmbiguousAnchor,
			Detail: fmt.Sprintf("two items within %.3f of best match", ambiguityEpsilon),
		}
	}

	start, end := approximateOffsets(bestItem, span)
	grade := model.GradeParaphrase
	exactMatch := false
	if best >= r.exactThreshold {
		grade = model.GradeDirect
		exactMatch = true
	}
	return Resolution{
		Anchor:     model.Anchor{ItemID: bestItem.ID, Start: start, End: end, Exact: exactMatch},
		Grade:      grade,
		Similarity: best,
	}
}

// straddles reports whether span crosses the boundary between two adjacent
// items: a proper suffix of a ends the span's head and a proper prefix of b
// begins its tail.
func straddles(a, b, span string) bool {
	if len(span) < 2 {
		return false
	}
	joined := a + " " + b
	if !strings.Contains(joined, span) && !strings.Contains(a+b, span) {
		return false
	}
	// Contained in the concatenation but in neither item alone.
	return !strings.Contains(a, span) && !strings.Contains(b, span)
}

// normalize folds case, applies NFC, and collapses whitespace so that
// typographic variation does not defeat matching.
func normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// trigrams returns the set of character trigrams of s.
func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// containment returns |span ∩ item| / |span|: how much of the span's trigram
// set the item covers. A verbatim substring scores 1.0.
func containment(span, item map[string]struct{}) float64 {
	if len(span) == 0 {
		return 0
	}
	var hits int
	for g := range span {
		if _, ok := item[g]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(span))
}

// approximateOffsets locates the best-effort span window inside an item that
// matched only fuzzily. Falls back to the whole item when no head of the span
// can be located.
func approximateOffsets(item model.StructuralItem, span string) (int, int) {
	lowerText := strings.ToLower(item.Text)
	lowerSpan := strings.ToLower(span)

	if idx := strings.Index(lowerText, lowerSpan); idx >= 0 {
		return idx, idx + len(span)
	}
	head := lowerSpan
	if len(head) > 12 {
		head = head[:12]
	}
	if idx := strings.Index(lowerText, head); idx >= 0 {
		end := idx + len(span)
		if end > len(item.Text) {
			end = len(item.Text)
		}
		return idx, end
	}
	return 0, len(item.Text)
}
