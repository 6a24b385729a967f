// Package mock provides a deterministic embedder for tests and as a
// last-resort fallback when no real model is configured.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder hashes lowercase tokens into vector buckets and normalizes the
// result. Texts sharing words land near each other, so tests exercise real
// ranking behavior without a model; disjoint texts are (near-)orthogonal.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the default dimension (matching
// all-MiniLM-L6-v2, so it can stand in for the real model).
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// NewWithDimensions creates a mock embedder of the given size.
func NewWithDimensions(dim int) *Embedder {
	return &Embedder{dimensions: dim}
}

// Embed maps each token into a hash bucket and returns the unit-normalized
// bag-of-words vector. Deterministic for a given text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, m.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if tok == "" {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(tok))
		embedding[h.Sum64()%uint64(m.dimensions)] += 1
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
