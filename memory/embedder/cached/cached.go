// Package cached wraps another embedder with an in-process ristretto cache.
//
// Embedding is the slowest step of every store and search, and agent
// workloads re-embed the same strings constantly (retrieval queries, repeat
// exchanges). The cache is keyed by the exact input text; cost is the
// vector's byte size so MaxCost bounds actual memory.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/hollowlabs/revenant/memory"
)

// Config configures a cached embedder.
type Config struct {
	// MaxCostBytes bounds cache memory. Zero means 16 MiB.
	MaxCostBytes int64

	// NumCounters sizes the admission frequency sketch. Zero means 100k,
	// roughly 10x the expected unique-text count at default cost.
	NumCounters int64
}

// Embedder is a read-through cache over another embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// New wraps inner with a cache.
func New(inner memory.Embedder, cfg Config) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached: inner embedder is required")
	}
	maxCost := cfg.MaxCostBytes
	if maxCost == 0 {
		maxCost = 16 << 20
	}
	counters := cfg.NumCounters
	if counters == 0 {
		counters = 100_000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cached: create cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or computes and caches it.
// Cached vectors are shared; callers must not mutate the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec))*4)
	return vec, nil
}

// Dimensions reports the inner embedder's vector width.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Only tests need this;
// ristretto admits asynchronously.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
