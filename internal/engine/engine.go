// Package engine orchestrates the promotion pipeline: per-document passes
// that generate, gate, anchor, and judge candidates, followed by corpus-wide
// consolidation of equivalent facts. Every evaluated candidate leaves exactly
// one assertion-log entry; promoted facts are upserted by fingerprint so
// re-runs on unchanged input are no-ops.
package engine

import (
	"context"
	"time"

	"github.com/veridian-kg/ingest-cli/internal/anchor"
	"github.com/veridian-kg/ingest-cli/internal/budget"
	"github.com/veridian-kg/ingest-cli/internal/gates"
	"github.com/veridian-kg/ingest-cli/internal/generate"
	"github.com/veridian-kg/ingest-cli/internal/ledger"
	"github.com/veridian-kg/ingest-cli/internal/metrics"
	"github.com/veridian-kg/ingest-cli/internal/policy"
	"github.com/veridian-kg/ingest-cli/internal/resilience"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

// ProposerFactory builds a proposer bound to one document's unit lookup.
// A nil factory disables the generative strategy; the pattern strategy
// still runs.
type ProposerFactory func(lookup func(unitID string) (string, bool)) generate.Proposer

// Config tunes pass parallelism and the proposer boundary.
type Config struct {
	// Workers bounds concurrent candidate evaluations per document.
	Workers int
	// WindowSize is the unit count per proposer call.
	WindowSize int
	// ProposerTimeout bounds a single proposer attempt.
	ProposerTimeout time.Duration
	// Retry is applied to transient proposer failures inside the breaker.
	Retry resilience.RetryPolicy
}

// DefaultConfig returns the standard pass configuration.
func DefaultConfig() Config {
	return Config{
		Workers:         8,
		WindowSize:      generate.DefaultWindowSize,
		ProposerTimeout: 30 * time.Second,
		Retry:           resilience.DefaultRetryPolicy(),
	}
}

// Engine runs document passes against a store.
type Engine struct {
	chain    *gates.Chain
	resolver *anchor.Resolver
	policy   *policy.Engine
	store    store.Store
	log      ledger.Log
	metrics  *metrics.Metrics

	pattern *generate.PatternStrategy
	factory ProposerFactory
	budget  *budget.Budget
	breaker *resilience.Breaker

	cfg Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches prometheus collectors to the pass.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProposer enables the generative strategy.
func WithProposer(factory ProposerFactory, b *budget.Budget, breaker *resilience.Breaker) Option {
	return func(e *Engine) {
		e.factory = factory
		e.budget = b
		e.breaker = breaker
	}
}

// WithLedger substitutes the in-memory assertion log.
func WithLedger(log ledger.Log) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine over the given gate chain, resolver, policy, and
// store.
func New(chain *gates.Chain, resolver *anchor.Resolver, pol *policy.Engine, st store.Store, cfg Config, opts ...Option) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	e := &Engine{
		chain:    chain,
		resolver: resolver,
		policy:   pol,
		store:    st,
		log:      ledger.NewMemory(),
		pattern:  generate.NewPatternStrategy(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the engine's in-memory assertion log.
func (e *Engine) Ledger() ledger.Log {
	return e.log
}

// boundProposer wraps a document's proposer with budget admission, the
// circuit breaker, per-attempt timeouts, and transient-error retry. Failures
// surface as errors to the generative strategy, which degrades each one to a
// pre-decided abstention for its window.
type boundProposer struct {
	inner      generate.Proposer
	documentID string
	budget     *budget.Budget
	breaker    *resilience.Breaker
	retry      resilience.RetryPolicy
	timeout    time.Duration
}

func (p *boundProposer) Propose(ctx context.Context, unitIDs []string, instructions string) (*generate.Proposal, error) {
	// Admission is charged once per window, not per retry attempt.
	if p.budget != nil {
		if err := p.budget.Acquire(ctx, p.documentID); err != nil {
			return nil, err
		}
	}

	attempt := func(ctx context.Context) (*generate.Proposal, error) {
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		if p.breaker != nil {
			return resilience.Guard(ctx, p.breaker, func(ctx context.Context) (*generate.Proposal, error) {
				return p.inner.Propose(ctx, unitIDs, instructions)
			})
		}
		return p.inner.Propose(ctx, unitIDs, instructions)
	}

	return resilience.Retry(ctx, "proposer", p.retry, attempt)
}
