// Package flat implements the default memory backend: a brute-force L2
// index kept in lockstep with an insertion-ordered metadata list, persisted
// as two files after every mutation.
//
// The central correctness property is the parallel-array invariant: position
// i in the index always describes the same item as position i in the
// metadata list. Every mutating operation restores it before returning, and
// load refuses to serve a store where the two disagree.
package flat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/index"
)

const (
	indexFileName = "flat.index"
	metaFileName  = "metadata.json"
)

// Config configures a Store.
type Config struct {
	// Dir is the directory holding the two persisted blobs. Created if
	// missing.
	Dir string

	// Embedder maps text to vectors. Required.
	Embedder memory.Embedder

	// ModelName is reported in Stats. Informational only.
	ModelName string
}

// Store is the flat-index memory store.
//
// A single RWMutex guards both structures: writers are exclusive for the
// whole read-modify-write-persist sequence, readers share. Throughput is not
// a concern here (this is an agent memory log, not a hot path), so
// serializing access buys invariant safety cheaply.
type Store struct {
	mu       sync.RWMutex
	dir      string
	embedder memory.Embedder
	model    string

	idx    *index.Flat
	items  []memory.Item
	closed bool
}

var _ memory.Store = (*Store)(nil)

// New opens or creates a flat store under cfg.Dir.
func New(cfg Config) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("flat: embedder is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("flat: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("flat: create dir: %w", err)
	}

	s := &Store{
		dir:      cfg.Dir,
		embedder: cfg.Embedder,
		model:    cfg.ModelName,
	}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Flat store ready: %d items, dim=%d, dir=%s",
		len(s.items), s.idx.Dim(), s.dir)
	return s, nil
}

// loadLocked reads the persisted pair, or starts fresh when neither file
// exists. Called from New and Restore with the write lock (or exclusive
// construction) held.
func (s *Store) loadLocked() error {
	indexPath := filepath.Join(s.dir, indexFileName)
	metaPath := filepath.Join(s.dir, metaFileName)

	_, idxErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metaPath)

	if os.IsNotExist(idxErr) && os.IsNotExist(metaErr) {
		s.idx = index.NewFlat(s.embedder.Dimensions())
		s.items = nil
		return nil
	}

	// One file without the other is a torn write from a crash between the
	// two persistence steps. Fail fast instead of serving a half-store.
	if os.IsNotExist(idxErr) || os.IsNotExist(metaErr) {
		return fmt.Errorf("flat: only one of %s/%s exists: %w",
			indexFileName, metaFileName, memory.ErrCorrupted)
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("flat: open index: %w", err)
	}
	idx, err := index.ReadFlat(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("flat: read index: %w", err)
	}

	items, err := readMetadata(metaPath)
	if err != nil {
		return fmt.Errorf("flat: read metadata: %w", err)
	}

	if idx.Len() != len(items) {
		return fmt.Errorf("flat: index holds %d vectors, metadata %d items: %w",
			idx.Len(), len(items), memory.ErrCorrupted)
	}

	s.idx = idx
	s.items = items
	return nil
}

// embedSafe never fails: embedding errors are logged and replaced with a
// zero vector of the index dimension, so a memory write degrades instead of
// blocking the agent. The cost is that a failed embedding is
// indistinguishable from a semantically null item.
func (s *Store) embedSafe(ctx context.Context, text string) []float32 {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil || len(vec) != s.idx.Dim() {
		if err != nil {
			log.Printf("[MEMORY] Embedding failed, storing zero vector: %v", err)
		} else {
			log.Printf("[MEMORY] Embedding dimension %d, want %d; storing zero vector",
				len(vec), s.idx.Dim())
		}
		return make([]float32, s.idx.Dim())
	}
	return vec
}

// Store appends an item and persists both structures. Duplicate keys
// coexist; no uniqueness check is performed.
func (s *Store) Store(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.ErrClosed
	}
	return s.storeLocked(ctx, key, value)
}

func (s *Store) storeLocked(ctx context.Context, key string, value any) error {
	item := memory.NewItem(key, value)
	item.Embedding = s.embedSafe(ctx, item.Text)

	if err := s.idx.Add(item.Embedding); err != nil {
		return fmt.Errorf("flat: index append: %w", err)
	}
	s.items = append(s.items, item)

	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("flat: store %q persisted in memory only: %w", key, err)
	}
	return nil
}

// Retrieve returns the value of the first item with the given key.
func (s *Store) Retrieve(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, memory.ErrClosed
	}
	for _, it := range s.items {
		if it.Key == key {
			return it.Value, nil
		}
	}
	return nil, memory.ErrNotFound
}

// Search embeds the query and returns up to limit nearest items, ascending
// by L2 distance.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if err := validateQuery(query, &limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, memory.ErrClosed
	}
	return s.searchLocked(ctx, query, limit), nil
}

func (s *Store) searchLocked(ctx context.Context, query string, limit int) []memory.SearchResult {
	if len(s.items) == 0 {
		return []memory.SearchResult{}
	}

	queryVec := s.embedSafe(ctx, query)
	positions, distances := s.idx.Search(queryVec, limit)

	results := make([]memory.SearchResult, 0, len(positions))
	for i, pos := range positions {
		// The flat index never emits negative positions, but ANN
		// structures that pad with -1 exist; keep the guard.
		if pos < 0 || pos >= len(s.items) {
			continue
		}
		results = append(results, s.items[pos].Result(distances[i]))
	}
	return results
}

// SemanticSearch filters Search results down to those meeting the
// similarity threshold. Zero matches is an empty slice, never an error.
func (s *Store) SemanticSearch(ctx context.Context, query string, threshold float64, limit int) ([]memory.SearchResult, error) {
	results, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	filtered := make([]memory.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// HybridSearch blends the semantic ranking with a keyword scan over the FULL
// item set, not just the semantic candidates, or items with strong keyword
// presence but weak semantic similarity would score wrong.
func (s *Store) HybridSearch(ctx context.Context, query string, keywords []string, semanticWeight float64, limit int) ([]memory.HybridResult, error) {
	if err := validateQuery(query, &limit); err != nil {
		return nil, err
	}
	if semanticWeight < 0 || semanticWeight > 1 {
		return nil, fmt.Errorf("semantic weight %f outside [0,1]: %w",
			semanticWeight, memory.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, memory.ErrClosed
	}

	semantic := s.searchLocked(ctx, query, limit)

	// Merge by key. An item found in only one dimension scores 0.0 in the
	// other; the order slice keeps ranking deterministic for equal scores.
	merged := make(map[string]*memory.HybridResult)
	var order []string

	for _, r := range semantic {
		if _, ok := merged[r.Key]; ok {
			continue
		}
		merged[r.Key] = &memory.HybridResult{
			SearchResult:  r,
			SemanticScore: r.Similarity,
		}
		order = append(order, r.Key)
	}

	if len(keywords) > 0 {
		for _, it := range s.items {
			score := keywordScore(it.Text, keywords)
			if score == 0 {
				continue
			}
			if entry, ok := merged[it.Key]; ok {
				entry.KeywordScore = score
				continue
			}
			merged[it.Key] = &memory.HybridResult{
				SearchResult: memory.SearchResult{
					Key:       it.Key,
					Text:      it.Text,
					Value:     it.Value,
					Timestamp: it.Timestamp,
				},
				KeywordScore: score,
			}
			order = append(order, it.Key)
		}
	}

	results := make([]memory.HybridResult, 0, len(order))
	for _, key := range order {
		entry := merged[key]
		entry.HybridScore = semanticWeight*entry.SemanticScore +
			(1-semanticWeight)*entry.KeywordScore
		results = append(results, *entry)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].HybridScore > results[b].HybridScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordScore counts keywords present as case-insensitive substrings,
// normalized by the total keyword count.
func keywordScore(text string, keywords []string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// Delete removes the first item with the given key and rebuilds the index
// from the remaining items' stored embeddings: the flat structure has no
// removal, so a rebuild is the only way to restore the parallel invariant.
// Deleting a missing key reports false without error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, memory.ErrClosed
	}
	return s.deleteLocked(ctx, key)
}

func (s *Store) deleteLocked(ctx context.Context, key string) (bool, error) {
	pos := -1
	for i, it := range s.items {
		if it.Key == key {
			pos = i
			break
		}
	}
	if pos == -1 {
		return false, nil
	}

	// Rebuild in memory first so a failure leaves the old pair intact.
	remaining := make([]memory.Item, 0, len(s.items)-1)
	remaining = append(remaining, s.items[:pos]...)
	remaining = append(remaining, s.items[pos+1:]...)

	rebuilt := index.NewFlat(s.idx.Dim())
	for i, it := range remaining {
		if err := rebuilt.Add(it.Embedding); err != nil {
			return false, fmt.Errorf("flat: rebuild at %d: %w", i, err)
		}
	}

	s.items = remaining
	s.idx = rebuilt

	if err := s.persist(ctx); err != nil {
		return true, fmt.Errorf("flat: delete %q persisted in memory only: %w", key, err)
	}
	log.Printf("[MEMORY] Deleted %q, %d items remain", key, len(s.items))
	return true, nil
}

// Update is delete + re-store: the replacement moves to the end of the
// insertion order and gets a fresh timestamp. A missing key degrades to a
// plain Store. Returns true in both paths.
func (s *Store) Update(ctx context.Context, key string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, memory.ErrClosed
	}

	if _, err := s.deleteLocked(ctx, key); err != nil {
		return false, err
	}
	if err := s.storeLocked(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Stats reports the administrative snapshot. IndexSize is read from the
// live index rather than assumed equal to the item count, so a violated
// invariant is visible here.
func (s *Store) Stats(ctx context.Context) (memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memory.Stats{}, memory.ErrClosed
	}

	st := memory.Stats{
		TotalItems:        len(s.items),
		IndexSize:         s.idx.Len(),
		Dimensions:        s.idx.Dim(),
		ModelName:         s.model,
		IndexFileBytes:    fileSize(filepath.Join(s.dir, indexFileName)),
		MetadataFileBytes: fileSize(filepath.Join(s.dir, metaFileName)),
		StoragePath:       s.dir,
	}
	for _, it := range s.items {
		if st.OldestItem == "" || it.Timestamp < st.OldestItem {
			st.OldestItem = it.Timestamp
		}
		if it.Timestamp > st.NewestItem {
			st.NewestItem = it.Timestamp
		}
	}
	return st, nil
}

// Clear resets to an empty store and removes the persisted files.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.ErrClosed
	}

	s.idx = index.NewFlat(s.idx.Dim())
	s.items = nil

	for _, name := range []string{indexFileName, metaFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("flat: remove %s: %w", name, err)
		}
	}
	log.Printf("[MEMORY] Cleared store at %s", s.dir)
	return nil
}

// Backup copies the persisted pair wholesale into dir. A never-persisted
// store backs up as an absence of files, which Restore treats as empty.
func (s *Store) Backup(ctx context.Context, dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memory.ErrClosed
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("flat: create backup dir: %w", err)
	}
	for _, name := range []string{indexFileName, metaFileName} {
		src := filepath.Join(s.dir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("flat: backup %s: %w", name, err)
		}
	}
	log.Printf("[MEMORY] Backed up store to %s", dir)
	return nil
}

// Restore replaces the persisted pair from dir and reloads, re-validating
// the parallel invariant before serving anything.
func (s *Store) Restore(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.ErrClosed
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("flat: backup dir: %w", err)
	}
	for _, name := range []string{indexFileName, metaFileName} {
		src := filepath.Join(dir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("flat: restore %s: %w", name, err)
		}
	}

	if err := s.loadLocked(); err != nil {
		return err
	}
	log.Printf("[MEMORY] Restored %d items from %s", len(s.items), dir)
	return nil
}

// Close marks the store closed. State is already durable (every mutation
// persisted before returning), so there is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// persist writes the index blob then the metadata blob, each through a
// temp-file-and-rename so a crash never leaves a half-written file. A crash
// BETWEEN the two renames still tears the pair; load converts that into
// ErrCorrupted instead of serving mismatched positions. Transient write
// failures are retried with constant backoff.
func (s *Store) persist(ctx context.Context) error {
	backoff := retry.WithMaxRetries(2, retry.NewConstant(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.writeIndex(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := writeMetadata(filepath.Join(s.dir, metaFileName), s.items); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func validateQuery(query string, limit *int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("empty query: %w", memory.ErrInvalidInput)
	}
	if *limit == 0 {
		*limit = memory.DefaultSearchLimit
	}
	if *limit < 0 {
		return fmt.Errorf("limit %d: %w", *limit, memory.ErrInvalidInput)
	}
	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
