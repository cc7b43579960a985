// Package gates implements the verbatim validator and the deterministic gate
// chain: ordered, cheap, explainable checks that never call the generative
// model. Each gate either passes the candidate through (possibly amended),
// or stops it with a terminal reason code.
package gates

import (
	"context"

	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Verdict is the outcome of a single gate.
type Verdict struct {
	// Terminal is true when the gate stops the candidate. Reason then holds
	// the structured code for the assertion log.
	Terminal bool
	Reason   model.ReasonCode
	Detail   string
	// Amended, when non-nil, replaces the candidate for the rest of the
	// chain (field discarded, basis downgraded). The original candidate is
	// never mutated in place.
	Amended *model.Candidate
}

// Pass is the zero-value verdict: candidate continues unchanged.
func Pass() Verdict {
	return Verdict{}
}

// Stop produces a terminal verdict with the given reason.
func Stop(reason model.ReasonCode, detail string) Verdict {
	return Verdict{Terminal: true, Reason: reason, Detail: detail}
}

// Gate is one deterministic check in the chain.
type Gate interface {
	Name() string
	Check(ctx context.Context, cand model.Candidate, bundle model.EvidenceBundle, ix *index.Index) Verdict
}

// Chain runs gates in order, short-circuiting on the first terminal verdict.
type Chain struct {
	gates []Gate
}

// NewChain builds a chain over the given gates in order.
func NewChain(gates ...Gate) *Chain {
	return &Chain{gates: gates}
}

// Run evaluates the candidate through every gate. It returns the (possibly
// amended) candidate and the final verdict; a zero verdict means all gates
// passed.
func (c *Chain) Run(ctx context.Context, cand model.Candidate, bundle model.EvidenceBundle, ix *index.Index) (model.Candidate, Verdict) {
	current := cand
	for _, g := range c.gates {
		v := g.Check(ctx, current, bundle, ix)
		if v.Terminal {
			zap.L().Debug("gate: candidate stopped",
				zap.String("gate", g.Name()),
				zap.String("candidate", current.ID),
				zap.String("reason", string(v.Reason)),
			)
			return current, v
		}
		if v.Amended != nil {
			current = *v.Amended
		}
	}
	return current, Pass()
}
