// Package embed provides text embeddings for the tautology gate. Embedding
// computation itself is an external capability; this package wraps an OpenAI
// client for production and ships a deterministic local fallback so the gate
// chain never needs a network call in tests.
package embed

import (
	"context"
	"math"
)

// Embedder produces a fixed-dimension vector for a short text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Cosine returns the cosine similarity of two vectors, 0 when either vector
// is empty, zero-length, or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
