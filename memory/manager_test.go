package memory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/embedder/mock"
	"github.com/hollowlabs/revenant/memory/store/flat"
)

func newManager(t *testing.T, cfg *memory.ManagerConfig) *memory.Manager {
	t.Helper()
	store, err := flat.New(flat.Config{
		Dir:      t.TempDir(),
		Embedder: mock.NewWithDimensions(128),
	})
	if err != nil {
		t.Fatalf("flat.New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return memory.NewManager(store, cfg)
}

func TestManagerRecordAndRetrieve(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &memory.ManagerConfig{
		Enabled:       true,
		MinSimilarity: 0.1,
		RetrieveLimit: 5,
	})

	err := m.RecordExchange(ctx, "sess1", "how do I parse JSON in Go", "use encoding/json Unmarshal")
	if err != nil {
		t.Fatalf("RecordExchange failed: %v", err)
	}

	formatted, count, err := m.Retrieve(ctx, "parse JSON")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if formatted == "" || count == 0 {
		t.Fatalf("expected a formatted memory block, got (%q, %d)", formatted, count)
	}
	if !strings.Contains(formatted, "RELEVANT PAST INTERACTIONS") {
		t.Errorf("missing header in %q", formatted)
	}
}

func TestManagerDisabled(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &memory.ManagerConfig{Enabled: false})

	if err := m.RecordExchange(ctx, "s", "q", "r"); err != nil {
		t.Fatalf("disabled RecordExchange errored: %v", err)
	}
	formatted, count, err := m.Retrieve(ctx, "anything")
	if err != nil || formatted != "" || count != 0 {
		t.Fatalf("disabled Retrieve = (%q, %d, %v)", formatted, count, err)
	}
}

func TestManagerEmptyQuery(t *testing.T) {
	m := newManager(t, nil)
	formatted, count, err := m.Retrieve(context.Background(), "   ")
	if err != nil || formatted != "" || count != 0 {
		t.Fatalf("blank query Retrieve = (%q, %d, %v)", formatted, count, err)
	}
}

func TestCoerceText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string passthrough", "plain text", "plain text"},
		{"map to JSON", map[string]any{"a": 1}, `{"a":1}`},
		{"number to JSON", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memory.CoerceText(tt.value); got != tt.want {
				t.Errorf("CoerceText(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestSimilarityMonotonic(t *testing.T) {
	if memory.Similarity(0) != 1 {
		t.Errorf("Similarity(0) = %f, want 1", memory.Similarity(0))
	}
	if memory.Similarity(1) >= memory.Similarity(0.5) {
		t.Error("similarity not decreasing in distance")
	}
	if s := memory.Similarity(1000); s <= 0 || s > 1 {
		t.Errorf("Similarity(1000) = %f outside (0,1]", s)
	}
}
