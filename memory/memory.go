package memory

import (
	"context"
	"errors"
)

// Defaults applied by Store implementations when callers pass zero values.
const (
	DefaultSearchLimit    = 10
	DefaultThreshold      = 0.5
	DefaultSemanticWeight = 0.7
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrNotFound signals a key with no stored item. It is the "absent"
	// result, not a failure: retrieve and delete report it instead of
	// inventing an error condition.
	ErrNotFound = errors.New("memory: key not found")

	// ErrCorrupted signals that the persisted index and metadata disagree
	// about how many items exist. A store that detects this on load must
	// refuse to serve rather than return wrong neighbor positions.
	ErrCorrupted = errors.New("memory: index and metadata are out of sync")

	// ErrInvalidInput rejects malformed requests (empty query, non-positive
	// limit, weight outside [0,1]) at the boundary, before they reach the
	// index layer.
	ErrInvalidInput = errors.New("memory: invalid input")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("memory: store is closed")
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), ollama (local server), onnx (in-process
// model, build-tagged), cached (ristretto read-through wrapper).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Store is the similarity-searchable memory backend consumed by the agent
// layer. Callers treat every operation as best-effort: a memory failure must
// never abort the agent's primary task, so errors are returned for the
// caller to surface or ignore, never panicked.
//
// Implementations: flat (brute-force L2 index, two-file persistence) and
// chromem (embedded vector DB with logical delete).
type Store interface {
	// Store appends an item. Keys are NOT unique: duplicate keys coexist,
	// and key lookups resolve to the first match by insertion order.
	Store(ctx context.Context, key string, value any) error

	// Retrieve returns the value of the first item whose key matches, or
	// ErrNotFound.
	Retrieve(ctx context.Context, key string) (any, error)

	// Search returns up to limit nearest items to the query text, ordered
	// by ascending distance (descending similarity).
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// SemanticSearch runs Search and keeps only results whose similarity
	// meets the threshold. A zero-match result is an empty slice, not an
	// error.
	SemanticSearch(ctx context.Context, query string, threshold float64, limit int) ([]SearchResult, error)

	// HybridSearch blends semantic similarity with a keyword scan over the
	// full item set. semanticWeight in [0,1] biases the blend toward the
	// semantic signal.
	HybridSearch(ctx context.Context, query string, keywords []string, semanticWeight float64, limit int) ([]HybridResult, error)

	// Delete removes the first item whose key matches. Returns false when
	// no item matched; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// Update replaces the first item whose key matches with a fresh entry
	// (delete + re-store: the item moves to the end of insertion order and
	// gets a new timestamp). Missing keys behave as a plain Store.
	Update(ctx context.Context, key string, value any) (bool, error)

	// Stats reports item count, index size, dimensions and storage sizes.
	Stats(ctx context.Context) (Stats, error)

	// Clear resets the store to empty and removes persisted files.
	Clear(ctx context.Context) error

	// Backup copies the persisted state into dir.
	Backup(ctx context.Context, dir string) error

	// Restore replaces the persisted state from dir and reloads.
	Restore(ctx context.Context, dir string) error

	// Close flushes and releases resources.
	Close() error
}

// SearchResult is one nearest-neighbor hit.
type SearchResult struct {
	Key        string  `json:"key"`
	Text       string  `json:"text"`
	Value      any     `json:"value"`
	Timestamp  string  `json:"timestamp"`
	Similarity float64 `json:"similarity_score"`
	Distance   float64 `json:"distance"`
}

// HybridResult carries the blended ranking of HybridSearch. SemanticScore
// and KeywordScore are each in [0,1]; a dimension the item was not found in
// scores 0.0.
type HybridResult struct {
	SearchResult
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
	HybridScore   float64 `json:"hybrid_score"`
}

// Stats is the administrative snapshot of a store. IndexSize must equal
// TotalItems; a mismatch indicates corruption.
type Stats struct {
	TotalItems        int    `json:"total_items"`
	IndexSize         int    `json:"index_size"`
	Dimensions        int    `json:"embedding_dimension"`
	ModelName         string `json:"model_name"`
	IndexFileBytes    int64  `json:"index_file_size_bytes"`
	MetadataFileBytes int64  `json:"metadata_file_size_bytes"`
	OldestItem        string `json:"oldest_item,omitempty"`
	NewestItem        string `json:"newest_item,omitempty"`
	StoragePath       string `json:"storage_path"`
}

// Similarity converts a raw L2 distance into the (0,1] "higher is better"
// ranking scalar used across the store: 1/(1+d). It is monotonic in the
// distance, not a probability.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
