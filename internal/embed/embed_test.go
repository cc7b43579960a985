package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
}

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder()
	a, err := e.Embed(context.Background(), "the reactor core")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the reactor core")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocalEmbedder_IdenticalPhrasesScoreHigh(t *testing.T) {
	e := NewLocalEmbedder()
	a, err := e.Embed(context.Background(), "The Reactor Core")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the reactor core.")
	require.NoError(t, err)
	assert.Greater(t, Cosine(a, b), 0.99)
}

func TestLocalEmbedder_DistinctPhrasesScoreLower(t *testing.T) {
	e := NewLocalEmbedder()
	a, err := e.Embed(context.Background(), "the reactor core temperature")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "quarterly revenue growth figures")
	require.NoError(t, err)
	assert.Less(t, Cosine(a, b), 0.5)
}
