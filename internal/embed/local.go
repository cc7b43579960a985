package embed

import (
	"context"
	"hash/fnv"
	"strings"
)

// localDims is the dimension of the hashed bag-of-words space.
const localDims = 256

// LocalEmbedder is a deterministic, dependency-free embedder: a hashed
// bag-of-words vector. It is not a semantic model, but identical or
// near-identical phrases score near 1.0, which is exactly what the tautology
// gate needs, and it keeps the gate chain fully offline.
type LocalEmbedder struct{}

// NewLocalEmbedder creates the deterministic local embedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// Embed hashes each folded token into a fixed-dimension count vector.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, localDims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?'\"()[]{}")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%localDims]++
	}
	return vec, nil
}
