package budget

import "sync"

// ModelRate holds per-model token pricing in dollars per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates holds pricing for the external services a pass may call.
type Rates struct {
	Propose      map[string]ModelRate `yaml:"propose" mapstructure:"propose"`
	EmbedPerMTok float64              `yaml:"embed_per_mtok" mapstructure:"embed_per_mtok"`
}

// DefaultRates returns the default pricing table.
func DefaultRates() Rates {
	return Rates{
		Propose: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		EmbedPerMTok: 0.02,
	}
}

// Meter accumulates token usage and estimated spend across a pass. It is
// advisory: spend never gates a call, the counters in Budget do that.
type Meter struct {
	rates Rates

	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	embedTokens  int
	spend        float64
}

// NewMeter creates a meter over a pricing table.
func NewMeter(rates Rates) *Meter {
	return &Meter{rates: rates}
}

// RecordPropose adds one proposer call's token usage. Unknown models count
// tokens but contribute zero spend.
func (m *Meter) RecordPropose(model string, input, output int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputTokens += input
	m.outputTokens += output
	if r, ok := m.rates.Propose[model]; ok {
		m.spend += (float64(input)/1e6)*r.Input + (float64(output)/1e6)*r.Output
	}
}

// RecordEmbed adds one embedding call's token usage.
func (m *Meter) RecordEmbed(tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedTokens += tokens
	m.spend += (float64(tokens) / 1e6) * m.rates.EmbedPerMTok
}

// Spend returns the estimated dollar spend so far.
func (m *Meter) Spend() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spend
}

// Tokens returns cumulative proposer input, proposer output, and embedding
// token counts.
func (m *Meter) Tokens() (input, output, embed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputTokens, m.outputTokens, m.embedTokens
}
