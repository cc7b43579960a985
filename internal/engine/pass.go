package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veridian-kg/ingest-cli/internal/generate"
	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/ledger"
	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

// DocumentReport summarizes one document pass.
type DocumentReport struct {
	DocumentID string        `json:"document_id"`
	Items      int           `json:"items"`
	Candidates int           `json:"candidates"`
	Promoted   int           `json:"promoted"`
	Abstained  int           `json:"abstained"`
	Rejected   int           `json:"rejected"`
	Duration   time.Duration `json:"duration"`
}

// outcome is the evaluated fate of one extraction.
type outcome struct {
	cand     model.Candidate
	decision model.PromotionDecision
	info     *model.Information
}

// RunDocument executes a full pass over one document's structural items:
// index, generate, evaluate, record. Index corruption is the only fatal
// input error; everything downstream degrades to per-candidate decisions.
func (e *Engine) RunDocument(ctx context.Context, documentID string, items []model.StructuralItem) (*DocumentReport, error) {
	start := time.Now()

	ix, err := index.Build(documentID, items)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: index document %s", documentID)
	}

	extractions, err := e.generateCandidates(ctx, ix)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(extractions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, ex := range extractions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.decide(gctx, ix, ex)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "engine: evaluate document %s", documentID)
	}

	report := &DocumentReport{
		DocumentID: documentID,
		Items:      ix.Len(),
		Candidates: len(extractions),
	}
	for _, out := range outcomes {
		if err := e.commit(ctx, out); err != nil {
			return nil, err
		}
		switch out.decision.Decision {
		case model.DecisionPromote:
			report.Promoted++
		case model.DecisionAbstain:
			report.Abstained++
		case model.DecisionReject:
			report.Rejected++
		}
		if e.metrics != nil {
			e.metrics.ObserveDecision(out.decision.Decision, out.decision.Reason)
		}
	}

	report.Duration = time.Since(start)
	if e.metrics != nil {
		e.metrics.ObservePassDuration(report.Duration.Seconds())
	}
	zap.L().Info("engine: document pass complete",
		zap.String("document", documentID),
		zap.Int("candidates", report.Candidates),
		zap.Int("promoted", report.Promoted),
		zap.Int("abstained", report.Abstained),
		zap.Int("rejected", report.Rejected),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// generateCandidates runs both strategies and merges their output with
// pattern precedence.
func (e *Engine) generateCandidates(ctx context.Context, ix *index.Index) ([]generate.Extraction, error) {
	pattern := e.pattern.Extract(ix)

	var generative []generate.Extraction
	if e.factory != nil {
		lookup := func(unitID string) (string, bool) {
			item, ok := ix.Get(unitID)
			if !ok {
				return "", false
			}
			return item.Text, true
		}
		bound := &boundProposer{
			inner:      e.factory(lookup),
			documentID: ix.DocumentID(),
			budget:     e.budget,
			breaker:    e.breaker,
			retry:      e.cfg.Retry,
			timeout:    e.cfg.ProposerTimeout,
		}
		strategy := generate.NewGenerativeStrategy(bound, e.cfg.WindowSize)
		var err error
		generative, err = strategy.Extract(ctx, ix)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: generative pass on %s", ix.DocumentID())
		}
	}

	if e.metrics != nil {
		for _, ex := range pattern {
			if ex.Reason == "" {
				e.metrics.ObserveCandidate(ex.Candidate.Method)
			}
		}
		for _, ex := range generative {
			if ex.Reason == "" {
				e.metrics.ObserveCandidate(ex.Candidate.Method)
			}
		}
	}

	return generate.Merge(pattern, generative), nil
}

// decide runs one extraction through gates, anchor resolution, and the
// promotion policy. It is total: every extraction yields a decision.
func (e *Engine) decide(ctx context.Context, ix *index.Index, ex generate.Extraction) outcome {
	// Pre-decided abstentions (failed proposer windows, exhausted budget)
	// bypass the gate chain; their reason is already terminal.
	if ex.Reason != "" {
		return outcome{
			cand: ex.Candidate,
			decision: model.PromotionDecision{
				Decision: model.DecisionFor(ex.Reason),
				Reason:   ex.Reason,
				Detail:   ex.Detail,
			},
		}
	}

	cand, verdict := e.chain.Run(ctx, ex.Candidate, ex.Bundle, ix)
	if verdict.Terminal {
		return outcome{
			cand: cand,
			decision: model.PromotionDecision{
				Decision: model.DecisionFor(verdict.Reason),
				Reason:   verdict.Reason,
				Detail:   verdict.Detail,
			},
		}
	}

	anchors, res := e.resolveAnchors(ix, cand, ex.Bundle)
	if res != nil {
		return outcome{
			cand: cand,
			decision: model.PromotionDecision{
				Decision: model.DecisionFor(res.Reason),
				Reason:   res.Reason,
				Detail:   res.Detail,
			},
		}
	}

	decision := e.policy.Evaluate(cand, ex.Bundle, anchors)
	out := outcome{cand: cand, decision: decision}
	if decision.Promoted() {
		out.info = &model.Information{
			Fingerprint: model.Fingerprint(cand.Subject, cand.Predicate, cand.Object, decision.Tier),
			Subject:     cand.Subject,
			Predicate:   cand.Predicate,
			Object:      cand.Object,
			Relation:    cand.Relation,
			Tier:        decision.Tier,
			Grade:       decision.Grade,
			Confidence:  decision.Confidence,
			Anchors:     anchors,
			DocumentID:  cand.DocumentID,
			CandidateID: cand.ID,
			CreatedAt:   time.Now().UTC(),
		}
	}
	return out
}

// resolveAnchors binds the candidate's evidence and every fragment span to
// structural items. A failed primary resolution is terminal and returned as
// a decision-bearing resolution; fragment spans already passed the verbatim
// gate and resolve exactly.
func (e *Engine) resolveAnchors(ix *index.Index, cand model.Candidate, bundle model.EvidenceBundle) ([]model.Anchor, *failedResolution) {
	primary := e.resolver.Resolve(ix, cand.Evidence)
	if !primary.Resolved() {
		return nil, &failedResolution{Reason: primary.Reason, Detail: primary.Detail}
	}

	anchors := []model.Anchor{primary.Anchor}
	seen := map[string]bool{primary.Anchor.ItemID: true}
	for _, f := range bundle.Fragments {
		res := e.resolver.Resolve(ix, f.Span)
		if !res.Resolved() || seen[res.Anchor.ItemID] {
			continue
		}
		seen[res.Anchor.ItemID] = true
		anchors = append(anchors, res.Anchor)
	}
	return anchors, nil
}

type failedResolution struct {
	Reason model.ReasonCode
	Detail string
}

// commit records the decision in the assertion log and store, and upserts
// promoted information. Duplicate log entries are idempotent skips.
func (e *Engine) commit(ctx context.Context, out outcome) error {
	entry := ledger.NewEntry(out.cand, out.decision)

	if err := e.log.Append(entry); err != nil && !eris.Is(err, ledger.ErrDuplicateEntry) {
		return eris.Wrapf(err, "engine: ledger append %s", out.cand.ID)
	}
	if err := e.store.AppendLogEntry(ctx, entry); err != nil {
		if eris.Is(err, store.ErrDuplicateLogEntry) {
			zap.L().Debug("engine: log entry already recorded", zap.String("candidate", out.cand.ID))
		} else {
			return eris.Wrapf(err, "engine: persist log entry %s", out.cand.ID)
		}
	}

	if out.info == nil {
		return nil
	}
	if err := out.info.Validate(); err != nil {
		return eris.Wrapf(err, "engine: promoted information for %s", out.cand.ID)
	}
	created, err := e.store.UpsertInformation(ctx, *out.info)
	if err != nil {
		return eris.Wrapf(err, "engine: upsert information %s", out.info.Fingerprint)
	}
	if !created {
		zap.L().Debug("engine: information already present",
			zap.String("fingerprint", out.info.Fingerprint))
	}
	return nil
}
