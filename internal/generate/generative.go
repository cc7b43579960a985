package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/budget"
	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/resilience"
)

// ErrMalformedOutput marks proposer replies that could not be parsed as the
// required strict JSON. Clients wrap their parse failures with it.
var ErrMalformedOutput = eris.New("generate: proposer output not parseable")

// Proposal is the structured output a proposer must return. It points at a
// unit; it never carries quoted evidence text.
type Proposal struct {
	Abstain       bool                `json:"abstain,omitempty"`
	PointerUnitID string              `json:"pointer_unit_id,omitempty"`
	Subject       string              `json:"subject,omitempty"`
	Predicate     string              `json:"predicate,omitempty"`
	Object        string              `json:"object,omitempty"`
	Relation      model.RelationType  `json:"relation_type,omitempty"`
	Kind          model.AssertionKind `json:"kind,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
}

// Proposer is the external generative boundary. Implementations are wrapped
// in budget and breaker before they reach this package.
type Proposer interface {
	Propose(ctx context.Context, unitIDs []string, instructions string) (*Proposal, error)
}

// GenerativeStrategy asks the proposer about windows of units and turns
// well-formed pointer proposals into candidates. The evidence is always read
// back from the pointed unit; text from the proposal itself never becomes
// evidence.
type GenerativeStrategy struct {
	proposer     Proposer
	instructions string
	windowSize   int
}

// DefaultWindowSize is the unit count per proposer call.
const DefaultWindowSize = 8

// DefaultInstructions is the standing task given to the proposer.
const DefaultInstructions = "Identify one well-supported semantic relation among the given units. " +
	"Return strict JSON with pointer_unit_id, subject, predicate, object, relation_type, kind, confidence, " +
	"or {\"abstain\": true} when none is defensible."

// NewGenerativeStrategy creates the strategy. A windowSize of zero or below
// falls back to the default.
func NewGenerativeStrategy(p Proposer, windowSize int) *GenerativeStrategy {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &GenerativeStrategy{proposer: p, instructions: DefaultInstructions, windowSize: windowSize}
}

var validRelations = map[model.RelationType]bool{
	model.RelationCausal:      true,
	model.RelationDefinition:  true,
	model.RelationTemporal:    true,
	model.RelationContrast:    true,
	model.RelationElaboration: true,
	model.RelationImplication: true,
}

// Extract walks unit windows and collects one extraction per proposer call
// that did not abstain. A failed call degrades to a pre-decided abstention
// for its window and the walk continues; only context cancellation stops the
// pass.
func (s *GenerativeStrategy) Extract(ctx context.Context, ix *index.Index) ([]Extraction, error) {
	items := ix.Items()
	var out []Extraction
	for start := 0; start < len(items); start += s.windowSize {
		end := start + s.windowSize
		if end > len(items) {
			end = len(items)
		}
		unitIDs := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			unitIDs = append(unitIDs, item.ID)
		}

		proposal, err := s.proposer.Propose(ctx, unitIDs, s.instructions)
		if err != nil {
			if ctx.Err() != nil {
				return out, eris.Wrap(ctx.Err(), "generate: propose")
			}
			out = append(out, abstainFor(ix.DocumentID(), unitIDs, err))
			continue
		}
		if proposal == nil || proposal.Abstain {
			continue
		}

		out = append(out, s.accept(ix, unitIDs, proposal))
	}
	return out, nil
}

// abstainFor records a failed proposer call as an auditable abstention.
func abstainFor(documentID string, unitIDs []string, err error) Extraction {
	cand := model.NewCandidate(documentID, model.KindRelation, model.MethodGenerative)
	cand.UnitIDs = unitIDs
	reason := classifyProposerError(err)
	zap.L().Debug("proposer call degraded to abstention",
		zap.String("document_id", documentID),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return Extraction{Candidate: cand, Reason: reason, Detail: err.Error()}
}

func classifyProposerError(err error) model.ReasonCode {
	switch {
	case errors.Is(err, budget.ErrExhausted):
		return model.ReasonBudgetExhausted
	case errors.Is(err, ErrMalformedOutput):
		return model.ReasonMalformedProposal
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonProposerTimeout
	case errors.Is(err, resilience.ErrUnavailable):
		return model.ReasonProposerUnavailable
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.ReasonProposerTimeout
		}
		return model.ReasonProposerUnavailable
	}
}

// accept validates one proposal and builds the extraction. A malformed
// proposal becomes a pre-decided abstention so the attempt is still
// auditable.
func (s *GenerativeStrategy) accept(ix *index.Index, windowIDs []string, p *Proposal) Extraction {
	if reason := malformed(ix, windowIDs, p); reason != "" {
		zap.L().Debug("malformed proposal",
			zap.String("document_id", ix.DocumentID()),
			zap.String("detail", reason))
		cand := model.NewCandidate(ix.DocumentID(), model.KindRelation, model.MethodGenerative)
		cand.UnitIDs = windowIDs
		return Extraction{
			Candidate: cand,
			Reason:    model.ReasonMalformedProposal,
			Detail:    reason,
		}
	}

	item, _ := ix.Get(p.PointerUnitID)
	kind := p.Kind
	if kind == "" {
		kind = model.KindRelation
	}

	cand := model.NewCandidate(ix.DocumentID(), kind, model.MethodGenerative)
	cand.Subject = strings.TrimSpace(p.Subject)
	cand.Predicate = strings.TrimSpace(p.Predicate)
	cand.Object = strings.TrimSpace(p.Object)
	cand.Relation = p.Relation
	cand.Evidence = item.Text
	cand.UnitIDs = []string{item.ID}

	return Extraction{
		Candidate: cand,
		Bundle: model.EvidenceBundle{Fragments: []model.EvidenceFragment{{
			Span:       item.Text,
			UnitID:     item.ID,
			DocumentID: ix.DocumentID(),
			Confidence: p.Confidence,
		}}},
	}
}

// malformed returns a description of the first structural defect, or empty
// when the proposal is usable.
func malformed(ix *index.Index, windowIDs []string, p *Proposal) string {
	if p.PointerUnitID == "" {
		return "missing pointer_unit_id"
	}
	if _, ok := ix.Get(p.PointerUnitID); !ok {
		return fmt.Sprintf("pointer_unit_id %q not in document", p.PointerUnitID)
	}
	inWindow := false
	for _, id := range windowIDs {
		if id == p.PointerUnitID {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return fmt.Sprintf("pointer_unit_id %q outside proposed window", p.PointerUnitID)
	}
	if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Predicate) == "" || strings.TrimSpace(p.Object) == "" {
		return "incomplete triple"
	}
	if p.Relation != model.RelationNone && !validRelations[p.Relation] {
		return fmt.Sprintf("unknown relation_type %q", p.Relation)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Sprintf("confidence %.2f outside [0,1]", p.Confidence)
	}
	return ""
}
