package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Manager is the engine-facing glue over a Store. The engine is opinionated
// about WHEN memory runs (retrieve before the model call, record after);
// the Manager decides HOW: which search to use, how to format results,
// what an exchange is stored as.
type Manager struct {
	store  Store
	config *ManagerConfig
}

// ManagerConfig holds Manager tuning.
type ManagerConfig struct {
	// Enabled toggles the memory system on/off.
	Enabled bool

	// MinSimilarity is the semantic-search threshold for retrieval.
	// Small local models produce lower scores than hosted embedders; tune
	// per model.
	MinSimilarity float64

	// RetrieveLimit caps how many memories are injected per query.
	RetrieveLimit int
}

// DefaultManagerConfig returns sensible defaults for local use.
var DefaultManagerConfig = &ManagerConfig{
	Enabled:       true,
	MinSimilarity: DefaultThreshold,
	RetrieveLimit: 5,
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, config *ManagerConfig) *Manager {
	if config == nil {
		config = DefaultManagerConfig
	}
	return &Manager{store: store, config: config}
}

// Retrieve finds history relevant to the user's message and returns it
// formatted for prompt injection, along with how many memories it holds.
// Empty string means nothing relevant; errors are for the caller to
// ignore; retrieval is best-effort.
func (m *Manager) Retrieve(ctx context.Context, userMessage string) (string, int, error) {
	if !m.config.Enabled || strings.TrimSpace(userMessage) == "" {
		return "", 0, nil
	}

	results, err := m.store.SemanticSearch(ctx, userMessage, m.config.MinSimilarity, m.config.RetrieveLimit)
	if err != nil {
		return "", 0, fmt.Errorf("semantic search: %w", err)
	}
	log.Printf("[MEMORY] Retrieved %d memories for query: %q", len(results), truncateLog(userMessage, 50))
	if len(results) == 0 {
		return "", 0, nil
	}

	var parts []string
	parts = append(parts, "=== RELEVANT PAST INTERACTIONS ===")
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("%d. [%s] %s", i+1, r.Timestamp, truncateLog(r.Text, 400)))
	}
	return strings.Join(parts, "\n"), len(results), nil
}

// RecordExchange stores a query/response pair. Key collisions are fine
// (the store keeps duplicates), so the key only needs to be descriptive.
func (m *Manager) RecordExchange(ctx context.Context, sessionID, query, response string) error {
	if !m.config.Enabled {
		return nil
	}
	key := fmt.Sprintf("exchange_%s", sessionID)
	return m.store.Store(ctx, key, map[string]any{
		"query":    query,
		"response": response,
		"recorded": time.Now().Format(time.RFC3339),
	})
}

// Store exposes the underlying store for admin surfaces (stats, backup).
func (m *Manager) Store() Store {
	return m.store
}

// truncateLog truncates text for logging and formatting.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
