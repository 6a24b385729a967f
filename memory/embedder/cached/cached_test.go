package cached_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hollowlabs/revenant/memory/embedder/cached"
	"github.com/hollowlabs/revenant/memory/embedder/mock"
)

// countingEmbedder records how many times Embed runs.
type countingEmbedder struct {
	inner interface {
		Embed(ctx context.Context, text string) ([]float32, error)
		Dimensions() int
	}
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestCacheHitSkipsInner(t *testing.T) {
	counter := &countingEmbedder{inner: mock.NewWithDimensions(64)}
	e, err := cached.New(counter, cached.Config{})
	if err != nil {
		t.Fatalf("cached.New failed: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	first, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	e.Wait()

	second, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("second Embed failed: %v", err)
	}
	if counter.calls != 1 {
		t.Errorf("inner called %d times, want 1", counter.calls)
	}
	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestDistinctTextsMiss(t *testing.T) {
	counter := &countingEmbedder{inner: mock.NewWithDimensions(64)}
	e, err := cached.New(counter, cached.Config{})
	if err != nil {
		t.Fatalf("cached.New failed: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if _, err := e.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if _, err := e.Embed(ctx, "beta"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if counter.calls != 2 {
		t.Errorf("inner called %d times, want 2", counter.calls)
	}
}

func TestDimensionsPassthrough(t *testing.T) {
	e, err := cached.New(mock.NewWithDimensions(128), cached.Config{})
	if err != nil {
		t.Fatalf("cached.New failed: %v", err)
	}
	defer e.Close()
	if got := e.Dimensions(); got != 128 {
		t.Errorf("Dimensions = %d, want 128", got)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}
func (failingEmbedder) Dimensions() int { return 64 }

func TestErrorsNotCached(t *testing.T) {
	e, err := cached.New(failingEmbedder{}, cached.Config{})
	if err != nil {
		t.Fatalf("cached.New failed: %v", err)
	}
	defer e.Close()

	if _, err := e.Embed(context.Background(), "anything"); err == nil {
		t.Fatal("expected inner error to propagate")
	}
}

func TestNilInnerRejected(t *testing.T) {
	if _, err := cached.New(nil, cached.Config{}); err == nil {
		t.Fatal("expected error for nil inner embedder")
	}
}
