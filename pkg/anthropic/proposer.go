package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/veridian-kg/ingest-cli/internal/generate"
)

// DefaultModel is the proposer model when none is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// UnitLookup resolves a unit id to its text. The proposer sends unit texts
// to the model but trusts only the returned pointer.
type UnitLookup func(unitID string) (string, bool)

// Proposer implements generate.Proposer against one document's units.
type Proposer struct {
	client    Client
	model     string
	maxTokens int64
	lookup    UnitLookup
	onUsage   func(model string, input, output int)
}

// ProposerOption configures a Proposer.
type ProposerOption func(*Proposer)

// WithModel overrides the proposer model.
func WithModel(model string) ProposerOption {
	return func(p *Proposer) {
		if model != "" {
			p.model = model
		}
	}
}

// WithUsageHook registers a callback invoked with the token usage of every
// call, for the spend meter.
func WithUsageHook(fn func(model string, input, output int)) ProposerOption {
	return func(p *Proposer) { p.onUsage = fn }
}

// NewProposer creates a proposer over the client and unit lookup.
func NewProposer(client Client, lookup UnitLookup, opts ...ProposerOption) *Proposer {
	p := &Proposer{
		client:    client,
		model:     DefaultModel,
		maxTokens: 1024,
		lookup:    lookup,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Propose sends the window's unit texts and parses the strict-JSON reply.
// An unparseable reply is wrapped with generate.ErrMalformedOutput so the
// caller can degrade it to abstention rather than retry it.
func (p *Proposer) Propose(ctx context.Context, unitIDs []string, instructions string) (*generate.Proposal, error) {
	var sb strings.Builder
	for _, id := range unitIDs {
		text, ok := p.lookup(id)
		if !ok {
			continue
		}
		sb.WriteString("[")
		sb.WriteString(id)
		sb.WriteString("] ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return &generate.Proposal{Abstain: true}, nil
	}

	resp, err := p.client.CreateMessage(ctx, MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    CachedSystemBlocks(instructions),
		Messages:  []Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, err
	}
	if p.onUsage != nil {
		p.onUsage(resp.Model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	}
	resp.Usage.LogUsage(resp.Model, "propose")

	return parseProposal(responseText(resp))
}

func responseText(resp *MessageResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// parseProposal extracts the one JSON object the reply must consist of.
// Markdown fences are tolerated; anything else is malformed output.
func parseProposal(text string) (*generate.Proposal, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Wrap(generate.ErrMalformedOutput, "no JSON object in reply")
	}

	var proposal generate.Proposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &proposal); err != nil {
		return nil, eris.Wrapf(generate.ErrMalformedOutput, "decode proposal: %v", err)
	}
	return &proposal, nil
}

var _ generate.Proposer = (*Proposer)(nil)
