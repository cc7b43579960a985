// Package budget bounds external proposer usage. A pass may never issue more
// calls than the per-document and per-corpus caps allow, and calls are paced
// by a token bucket so a large corpus does not hammer the provider. Budget
// exhaustion is a normal outcome, not a failure: affected candidates abstain.
package budget

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrExhausted is returned by Acquire once a cap is reached. Callers map it
// to abstention, never to a pass failure.
var ErrExhausted = eris.New("budget: proposer call budget exhausted")

// Limits configure one budget. A cap of zero or below means unlimited.
type Limits struct {
	// MaxCallsPerDocument caps proposer calls for a single document.
	MaxCallsPerDocument int
	// MaxCallsPerCorpus caps proposer calls across the whole run.
	MaxCallsPerCorpus int
	// Timeout bounds a single proposer call.
	Timeout time.Duration
	// Retries is the number of retry attempts for a transient proposer
	// failure. Retries do not consume budget.
	Retries int
	// RatePerSecond paces calls through a token bucket. Zero disables pacing.
	RatePerSecond float64
	// Burst is the token bucket depth. Defaults to 1 when pacing is on.
	Burst int
}

// DefaultLimits returns the shipped caps.
func DefaultLimits() Limits {
	return Limits{
		MaxCallsPerDocument: 32,
		MaxCallsPerCorpus:   512,
		Timeout:             30 * time.Second,
		Retries:             2,
		RatePerSecond:       2,
		Burst:               4,
	}
}

// Budget tracks proposer call counts for one corpus pass. Safe for
// concurrent use.
type Budget struct {
	limits  Limits
	limiter *rate.Limiter

	mu          sync.Mutex
	corpusCalls int
	docCalls    map[string]int
}

// New creates a budget over the given limits.
func New(limits Limits) *Budget {
	var limiter *rate.Limiter
	if limits.RatePerSecond > 0 {
		burst := limits.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(limits.RatePerSecond), burst)
	}
	return &Budget{
		limits:   limits,
		limiter:  limiter,
		docCalls: make(map[string]int),
	}
}

// Limits returns the configured limits.
func (b *Budget) Limits() Limits {
	return b.limits
}

// Acquire reserves one proposer call for the document. It first checks both
// caps, then waits on the token bucket. A reservation is consumed whether or
// not the call succeeds.
func (b *Budget) Acquire(ctx context.Context, documentID string) error {
	b.mu.Lock()
	if b.limits.MaxCallsPerCorpus > 0 && b.corpusCalls >= b.limits.MaxCallsPerCorpus {
		b.mu.Unlock()
		return eris.Wrapf(ErrExhausted, "corpus cap %d reached", b.limits.MaxCallsPerCorpus)
	}
	if b.limits.MaxCallsPerDocument > 0 && b.docCalls[documentID] >= b.limits.MaxCallsPerDocument {
		b.mu.Unlock()
		return eris.Wrapf(ErrExhausted, "document %s cap %d reached", documentID, b.limits.MaxCallsPerDocument)
	}
	b.corpusCalls++
	b.docCalls[documentID]++
	b.mu.Unlock()

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "budget: rate wait")
		}
	}
	return nil
}

// Remaining reports how many calls are left for the document and the corpus.
// Unlimited caps report -1.
func (b *Budget) Remaining(documentID string) (doc, corpus int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, corpus = -1, -1
	if b.limits.MaxCallsPerDocument > 0 {
		doc = b.limits.MaxCallsPerDocument - b.docCalls[documentID]
	}
	if b.limits.MaxCallsPerCorpus > 0 {
		corpus = b.limits.MaxCallsPerCorpus - b.corpusCalls
	}
	return doc, corpus
}

// Calls returns the total number of reserved calls so far.
func (b *Budget) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.corpusCalls
}
