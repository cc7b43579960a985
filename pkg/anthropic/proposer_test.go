package anthropic

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-kg/ingest-cli/internal/generate"
	"github.com/veridian-kg/ingest-cli/internal/model"
)

// fakeClient returns a canned response and records the request.
type fakeClient struct {
	resp *MessageResponse
	err  error
	got  *MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req MessageRequest) (*MessageResponse, error) {
	f.got = &req
	return f.resp, f.err
}

func textResponse(text string) *MessageResponse {
	return &MessageResponse{
		Model:   DefaultModel,
		Content: []ContentBlock{{Type: "text", Text: text}},
		Usage:   TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func unitLookup(units map[string]string) UnitLookup {
	return func(id string) (string, bool) {
		text, ok := units[id]
		return text, ok
	}
}

func TestProposer_ParsesPointerProposal(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{
		"pointer_unit_id": "u1",
		"subject": "the aquifer",
		"predicate": "recharges",
		"object": "the wetland",
		"relation_type": "causal",
		"confidence": 0.8
	}`)}
	p := NewProposer(client, unitLookup(map[string]string{"u1": "The aquifer recharges the wetland."}))

	got, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.PointerUnitID)
	assert.Equal(t, "the aquifer", got.Subject)
	assert.Equal(t, model.RelationCausal, got.Relation)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.False(t, got.Abstain)
}

func TestProposer_ParsesAbstain(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"abstain": true}`)}
	p := NewProposer(client, unitLookup(map[string]string{"u1": "text"}))

	got, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
	require.NoError(t, err)
	assert.True(t, got.Abstain)
}

func TestProposer_ToleratesMarkdownFences(t *testing.T) {
	client := &fakeClient{resp: textResponse("```json\n{\"abstain\": true}\n```")}
	p := NewProposer(client, unitLookup(map[string]string{"u1": "text"}))

	got, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
	require.NoError(t, err)
	assert.True(t, got.Abstain)
}

func TestProposer_MalformedOutput(t *testing.T) {
	for _, text := range []string{
		"The aquifer clearly recharges the wetland.",
		`{"pointer_unit_id": "u1", "confidence": }`,
		"",
	} {
		client := &fakeClient{resp: textResponse(text)}
		p := NewProposer(client, unitLookup(map[string]string{"u1": "text"}))
		_, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
		require.ErrorIs(t, err, generate.ErrMalformedOutput, "reply %q", text)
	}
}

func TestProposer_TransportErrorPassesThrough(t *testing.T) {
	wantErr := eris.New("connection reset by peer")
	client := &fakeClient{err: wantErr}
	p := NewProposer(client, unitLookup(map[string]string{"u1": "text"}))

	_, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
	require.ErrorIs(t, err, wantErr)
}

func TestProposer_SendsUnitTextsAndCachedInstructions(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"abstain": true}`)}
	p := NewProposer(client, unitLookup(map[string]string{
		"u1": "First unit text.",
		"u2": "Second unit text.",
	}), WithModel("claude-sonnet-4-5-20250929"))

	_, err := p.Propose(context.Background(), []string{"u1", "u2"}, "the standing instructions")
	require.NoError(t, err)

	require.NotNil(t, client.got)
	assert.Equal(t, "claude-sonnet-4-5-20250929", client.got.Model)
	require.Len(t, client.got.System, 1)
	assert.Equal(t, "the standing instructions", client.got.System[0].Text)
	require.NotNil(t, client.got.System[0].CacheControl)
	require.Len(t, client.got.Messages, 1)
	assert.Contains(t, client.got.Messages[0].Content, "[u1] First unit text.")
	assert.Contains(t, client.got.Messages[0].Content, "[u2] Second unit text.")
}

func TestProposer_EmptyWindowAbstainsLocally(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"abstain": true}`)}
	p := NewProposer(client, unitLookup(map[string]string{}))

	got, err := p.Propose(context.Background(), []string{"u9"}, "instructions")
	require.NoError(t, err)
	assert.True(t, got.Abstain)
	// No API call was made for an empty window.
	assert.Nil(t, client.got)
}

func TestProposer_UsageHook(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"abstain": true}`)}
	var gotModel string
	var gotIn, gotOut int
	p := NewProposer(client, unitLookup(map[string]string{"u1": "text"}),
		WithUsageHook(func(model string, in, out int) {
			gotModel, gotIn, gotOut = model, in, out
		}))

	_, err := p.Propose(context.Background(), []string{"u1"}, "instructions")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, gotModel)
	assert.Equal(t, 100, gotIn)
	assert.Equal(t, 20, gotOut)
}
