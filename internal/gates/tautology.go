package gates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/embed"
	"github.com/veridian-kg/ingest-cli/internal/index"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// DefaultTautologyThreshold is the cosine similarity above which subject and
// object are considered the same thing restated.
const DefaultTautologyThreshold = 0.96

// TautologyGate rejects candidates whose subject and object are near-identical:
// "X is X" carries no information regardless of how well it is evidenced.
type TautologyGate struct {
	embedder  embed.Embedder
	fallback  embed.Embedder
	threshold float64
}

// NewTautologyGate creates the gate. A nil embedder uses the deterministic
// local embedder; a failing embedder falls back to it, so the gate chain
// never blocks on the embedding provider.
func NewTautologyGate(embedder embed.Embedder, threshold float64) *TautologyGate {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTautologyThreshold
	}
	local := embed.NewLocalEmbedder()
	if embedder == nil {
		embedder = local
	}
	return &TautologyGate{embedder: embedder, fallback: local, threshold: threshold}
}

func (g *TautologyGate) Name() string { return "tautology" }

func (g *TautologyGate) Check(ctx context.Context, cand model.Candidate, _ model.EvidenceBundle, _ *index.Index) Verdict {
	if cand.Subject == "" || cand.Object == "" {
		return Pass() // concept-reference candidates have no pair to compare
	}

	sim := g.similarity(ctx, cand.Subject, cand.Object)
	if sim >= g.threshold {
		return Stop(model.ReasonTautology, fmt.Sprintf("subject~object similarity %.3f >= %.3f", sim, g.threshold))
	}
	return Pass()
}

func (g *TautologyGate) similarity(ctx context.Context, a, b string) float64 {
	va, errA := g.embedder.Embed(ctx, a)
	vb, errB := g.embedder.Embed(ctx, b)
	if errA != nil || errB != nil {
		zap.L().Warn("gate: embedder failed, using local fallback",
			zap.NamedError("subject_err", errA),
			zap.NamedError("object_err", errB),
		)
		va, _ = g.fallback.Embed(ctx, a)
		vb, _ = g.fallback.Embed(ctx, b)
	}
	return embed.Cosine(va, vb)
}
