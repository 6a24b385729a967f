package chromem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/embedder/mock"
	"github.com/hollowlabs/revenant/memory/store/chromem"
)

func newTestStore(t *testing.T) *chromem.Store {
	t.Helper()
	s, err := chromem.New(chromem.Config{
		Dir:       t.TempDir(),
		Embedder:  mock.NewWithDimensions(64),
		ModelName: "mock",
	})
	if err != nil {
		t.Fatalf("chromem.New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustStore(t *testing.T, s *chromem.Store, key string, value any) {
	t.Helper()
	if err := s.Store(context.Background(), key, value); err != nil {
		t.Fatalf("Store(%q) failed: %v", key, err)
	}
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "greeting", "hello world")

	got, err := s.Retrieve(ctx, "greeting")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Retrieve = %v, want hello world", got)
	}

	if _, err := s.Retrieve(ctx, "missing"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Retrieve(missing) err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateKeysFirstMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "dup", "first")
	mustStore(t, s, "dup", "second")

	got, err := s.Retrieve(ctx, "dup")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got != "first" {
		t.Errorf("Retrieve = %v, want first (insertion order)", got)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", st.TotalItems)
	}
}

func TestDeleteIsLogical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "a", "keep me")
	mustStore(t, s, "b", "remove me")
	mustStore(t, s, "c", "keep me too")

	deleted, err := s.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Fatal("Delete = false, want true")
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalItems != 2 || st.IndexSize != 2 {
		t.Errorf("after delete: TotalItems=%d IndexSize=%d, want 2/2", st.TotalItems, st.IndexSize)
	}

	// Idempotent.
	deleted, err = s.Delete(ctx, "b")
	if err != nil || deleted {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", deleted, err)
	}

	if _, err := s.Retrieve(ctx, "a"); err != nil {
		t.Errorf("survivor a unreadable: %v", err)
	}
	if _, err := s.Retrieve(ctx, "c"); err != nil {
		t.Errorf("survivor c unreadable: %v", err)
	}
}

func TestSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "a", "apple pie recipe")
	mustStore(t, s, "b", "quantum gravity lecture notes")
	mustStore(t, s, "c", "apple cider pressing")

	results, err := s.Search(ctx, "apple", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Key == "b" {
			t.Errorf("quantum notes outranked an apple item: %+v", results)
		}
	}
	if results[0].Similarity < results[1].Similarity {
		t.Errorf("results not in descending similarity: %+v", results)
	}
}

func TestSemanticSearchThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "a", "apple pie recipe")
	mustStore(t, s, "b", "quantum gravity lecture notes")

	all, err := s.Search(ctx, "apple pie", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	filtered, err := s.SemanticSearch(ctx, "apple pie", 0.5, 10)
	if err != nil {
		t.Fatalf("SemanticSearch failed: %v", err)
	}

	want := 0
	for _, r := range all {
		if r.Similarity >= 0.5 {
			want++
		}
	}
	if len(filtered) != want {
		t.Errorf("threshold filter kept %d, want %d", len(filtered), want)
	}
	for _, r := range filtered {
		if r.Similarity < 0.5 {
			t.Errorf("result below threshold leaked through: %+v", r)
		}
	}
}

func TestHybridSearchKeywordScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "a", "apple pie recipe")
	mustStore(t, s, "b", "banana bread instructions")
	mustStore(t, s, "c", "apple and banana smoothie")

	results, err := s.HybridSearch(ctx, "fruit", []string{"apple", "banana"}, 0.5, 10)
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected hybrid results")
	}
	if results[0].Key != "c" {
		t.Errorf("top result = %s, want c (matches both keywords)", results[0].Key)
	}
	if results[0].KeywordScore != 1.0 {
		t.Errorf("KeywordScore = %f, want 1.0", results[0].KeywordScore)
	}
	for i := 1; i < len(results); i++ {
		if results[i].HybridScore > results[i-1].HybridScore {
			t.Errorf("hybrid scores not descending at %d: %+v", i, results)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := mock.NewWithDimensions(64)

	s, err := chromem.New(chromem.Config{Dir: dir, Embedder: emb})
	if err != nil {
		t.Fatalf("chromem.New failed: %v", err)
	}
	if err := s.Store(ctx, "persisted", "survives restart"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	s.Close()

	reopened, err := chromem.New(chromem.Config{Dir: dir, Embedder: emb})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Retrieve(ctx, "persisted")
	if err != nil {
		t.Fatalf("Retrieve after reopen failed: %v", err)
	}
	if got != "survives restart" {
		t.Errorf("Retrieve = %v, want survives restart", got)
	}

	results, err := reopened.Search(ctx, "restart", 5)
	if err != nil {
		t.Fatalf("Search after reopen failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results after reopen, want 1", len(results))
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "a", "one")
	mustStore(t, s, "b", "two")

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalItems != 0 || st.IndexSize != 0 {
		t.Errorf("after clear: TotalItems=%d IndexSize=%d, want 0/0", st.TotalItems, st.IndexSize)
	}

	results, err := s.Search(ctx, "one", 5)
	if err != nil {
		t.Fatalf("Search after clear failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results after clear, want 0", len(results))
	}
}

func TestUpdateReplacesValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, "counter", 1)
	updated, err := s.Update(ctx, "counter", 2)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated {
		t.Error("Update = false, want true")
	}

	got, err := s.Retrieve(ctx, "counter")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got != 2 && got != float64(2) {
		t.Errorf("Retrieve = %v, want 2", got)
	}

	st, _ := s.Stats(ctx)
	if st.TotalItems != 1 {
		t.Errorf("TotalItems = %d after update, want 1", st.TotalItems)
	}
}

func TestInvalidInputs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Search(ctx, "   ", 5); !errors.Is(err, memory.ErrInvalidInput) {
		t.Errorf("blank query err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Search(ctx, "q", -1); !errors.Is(err, memory.ErrInvalidInput) {
		t.Errorf("negative limit err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.HybridSearch(ctx, "q", nil, 1.5, 5); !errors.Is(err, memory.ErrInvalidInput) {
		t.Errorf("weight 1.5 err = %v, want ErrInvalidInput", err)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Close()

	if err := s.Store(ctx, "k", "v"); !errors.Is(err, memory.ErrClosed) {
		t.Errorf("Store after Close err = %v, want ErrClosed", err)
	}
	if _, err := s.Search(ctx, "q", 5); !errors.Is(err, memory.ErrClosed) {
		t.Errorf("Search after Close err = %v, want ErrClosed", err)
	}
}
