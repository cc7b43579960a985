package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veridian-kg/ingest-cli/internal/anchor"
	"github.com/veridian-kg/ingest-cli/internal/budget"
	"github.com/veridian-kg/ingest-cli/internal/embed"
	"github.com/veridian-kg/ingest-cli/internal/engine"
	"github.com/veridian-kg/ingest-cli/internal/gates"
	"github.com/veridian-kg/ingest-cli/internal/generate"
	"github.com/veridian-kg/ingest-cli/internal/metrics"
	"github.com/veridian-kg/ingest-cli/internal/policy"
	"github.com/veridian-kg/ingest-cli/internal/resilience"
	"github.com/veridian-kg/ingest-cli/internal/store"
	"github.com/veridian-kg/ingest-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ingest.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEmbedder prefers the hosted embedder and falls back to the local
// deterministic one when no key is configured.
func initEmbedder() embed.Embedder {
	if cfg.OpenAI.APIKey == "" {
		return embed.NewLocalEmbedder()
	}
	e, err := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
		Key:   cfg.OpenAI.APIKey,
		Model: cfg.OpenAI.Model,
	})
	if err != nil {
		return embed.NewLocalEmbedder()
	}
	return e
}

func initPolicy() (*policy.Engine, error) {
	table := policy.DefaultTable()
	if cfg.Policy.TablePath != "" {
		loaded, err := policy.LoadTable(cfg.Policy.TablePath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	return policy.NewEngine(table)
}

// initEngine wires the full pass pipeline. withProposer controls whether the
// generative strategy runs; consolidation and queries never need it.
func initEngine(st store.Store, m *metrics.Metrics, meter *budget.Meter, withProposer bool) (*engine.Engine, error) {
	pol, err := initPolicy()
	if err != nil {
		return nil, err
	}

	chain := gates.NewChain(
		gates.NewVerbatimGate(),
		gates.NewTemplateGate(),
		gates.NewPredicateGate(),
		gates.NewTautologyGate(initEmbedder(), cfg.Gates.TautologyThreshold),
		gates.NewProximityGate(cfg.Gates.MaxFragmentDistance, cfg.Gates.MaxItemGap),
	)
	resolver := anchor.NewResolver(cfg.Anchor.ExactThreshold, cfg.Anchor.ApproxThreshold)

	engineCfg := engine.Config{
		Workers:         cfg.Engine.Workers,
		WindowSize:      cfg.Engine.WindowSize,
		ProposerTimeout: time.Duration(cfg.Budget.TimeoutSeconds) * time.Second,
		Retry:           resilience.DefaultRetryPolicy(),
	}
	engineCfg.Retry.Attempts = cfg.Budget.Retries + 1

	opts := []engine.Option{engine.WithMetrics(m)}
	if withProposer {
		client := anthropic.NewClient(cfg.Anthropic.APIKey)
		b := budget.New(budget.Limits{
			MaxCallsPerDocument: cfg.Budget.MaxCallsPerDocument,
			MaxCallsPerCorpus:   cfg.Budget.MaxCallsPerCorpus,
			Timeout:             time.Duration(cfg.Budget.TimeoutSeconds) * time.Second,
			Retries:             cfg.Budget.Retries,
			RatePerSecond:       cfg.Budget.RatePerSecond,
			Burst:               cfg.Budget.Burst,
		})
		breaker := resilience.NewBreaker("proposer", resilience.BreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			Cooldown:         time.Duration(cfg.Resilience.CooldownSeconds) * time.Second,
			OnStateChange:    m.BreakerHook(),
		})

		factory := func(lookup func(string) (string, bool)) generate.Proposer {
			return anthropic.NewProposer(client, lookup,
				anthropic.WithModel(cfg.Anthropic.Model),
				anthropic.WithUsageHook(meter.RecordPropose),
			)
		}
		opts = append(opts, engine.WithProposer(factory, b, breaker))
	}

	return engine.New(chain, resolver, pol, st, engineCfg, opts...), nil
}
