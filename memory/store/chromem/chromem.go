// Package chromem implements the memory Store on chromem-go, an embedded
// pure-Go vector database.
//
// Unlike the flat backend, deletes here are logical: each item maps to a
// chromem document keyed by a UUID, so removing one never rebuilds the rest.
// The store still keeps its own insertion-ordered metadata list (key
// lookups resolve to the first match in insertion order, duplicate keys
// coexist, and the keyword side of hybrid search scans every item), so the
// external contract matches the flat backend exactly. chromem ranks by
// cosine similarity; it is reported as distance = 1 - similarity.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/google/uuid"
	"github.com/hollowlabs/revenant/memory"
)

const (
	collectionName = "interactions"
	metaFileName   = "metadata.json"
	dbDirName      = "chromem"
	exportFileName = "chromem.export"
)

// Config configures a Store.
type Config struct {
	// Dir holds the chromem database directory and the metadata file.
	Dir string

	// Embedder maps text to vectors. Required.
	Embedder memory.Embedder

	// ModelName is reported in Stats.
	ModelName string
}

// entry pairs a stored item with its chromem document ID.
type entry struct {
	ID   string      `json:"id"`
	Item memory.Item `json:"item"`
}

// Store is the chromem-backed memory store.
type Store struct {
	mu       sync.RWMutex
	dir      string
	embedder memory.Embedder
	model    string

	db      *chromem.DB
	col     *chromem.Collection
	entries []entry
	closed  bool
}

var _ memory.Store = (*Store)(nil)

// New opens or creates a chromem store under cfg.Dir.
func New(cfg Config) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("chromem: embedder is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("chromem: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("chromem: create dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(cfg.Dir, dbDirName), false)
	if err != nil {
		return nil, fmt.Errorf("chromem: open db: %w", err)
	}

	s := &Store{
		dir:      cfg.Dir,
		embedder: cfg.Embedder,
		model:    cfg.ModelName,
		db:       db,
	}
	if err := s.openCollectionLocked(); err != nil {
		return nil, err
	}
	if err := s.loadEntriesLocked(); err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Chromem store ready: %d items, dir=%s", len(s.entries), s.dir)
	return s, nil
}

func (s *Store) openCollectionLocked() error {
	// Embeddings are provided by us, not computed by chromem.
	col, err := s.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem: open collection: %w", err)
	}
	s.col = col
	return nil
}

func (s *Store) loadEntriesLocked() error {
	path := filepath.Join(s.dir, metaFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if s.col.Count() != 0 {
			return fmt.Errorf("chromem: collection holds %d docs but metadata is missing: %w",
				s.col.Count(), memory.ErrCorrupted)
		}
		s.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("chromem: read metadata: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("chromem: parse metadata: %w", err)
	}
	if s.col.Count() != len(entries) {
		return fmt.Errorf("chromem: collection holds %d docs, metadata %d items: %w",
			s.col.Count(), len(entries), memory.ErrCorrupted)
	}
	s.entries = entries
	return nil
}

func (s *Store) saveEntriesLocked() error {
	entries := s.entries
	if entries == nil {
		entries = []entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, metaFileName)
	f, err := os.CreateTemp(s.dir, ".meta-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// embedSafe mirrors the flat backend's degrade policy: failures become a
// zero vector and a log line, never an error for the caller.
func (s *Store) embedSafe(ctx context.Context, text string) []float32 {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil || len(vec) != s.embedder.Dimensions() {
		log.Printf("[MEMORY] Embedding failed, using zero vector: %v", err)
		return make([]float32, s.embedder.Dimensions())
	}
	return vec
}

// Store appends an item as a fresh chromem document.
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

	id := uuid.New().String()
	doc := chromem.Document{
		ID:        id,
		Content:   item.Text,
		Embedding: item.Embedding,
		Metadata: map[string]string{
			"key":       item.Key,
			"timestamp": item.Timestamp,
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem: add document: %w", err)
	}

	s.entries = append(s.entries, entry{ID: id, Item: item})
	if err := s.saveEntriesLocked(); err != nil {
		return fmt.Errorf("chromem: store %q persisted in memory only: %w", key, err)
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
	for _, e := range s.entries {
		if e.Item.Key == key {
			return e.Item.Value, nil
		}
	}
	return nil, memory.ErrNotFound
}

// Search returns up to limit nearest items by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if err := validateQuery(query, &limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, memory.ErrClosed
	}
	return s.searchLocked(ctx, query, limit)
}

func (s *Store) searchLocked(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if len(s.entries) == 0 {
		return []memory.SearchResult{}, nil
	}

	k := limit
	if k > len(s.entries) {
		k = len(s.entries)
	}

	queryVec := s.embedSafe(ctx, query)
	hits, err := s.col.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	byID := make(map[string]memory.Item, len(s.entries))
	for _, e := range s.entries {
		byID[e.ID] = e.Item
	}

	results := make([]memory.SearchResult, 0, len(hits))
	for _, hit := range hits {
		item, ok := byID[hit.ID]
		if !ok {
			continue
		}
		distance := float64(1 - hit.Similarity)
		if distance < 0 {
			distance = 0
		}
		results = append(results, item.Result(distance))
	}
	return results, nil
}

// SemanticSearch filters Search results to those meeting the threshold.
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

// HybridSearch blends semantic ranking with a keyword scan over the full
// entry list.
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

	semantic, err := s.searchLocked(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*memory.HybridResult)
	var order []string
	for _, r := range semantic {
		if _, ok := merged[r.Key]; ok {
			continue
		}
		merged[r.Key] = &memory.HybridResult{SearchResult: r, SemanticScore: r.Similarity}
		order = append(order, r.Key)
	}

	if len(keywords) > 0 {
		for _, e := range s.entries {
			score := keywordScore(e.Item.Text, keywords)
			if score == 0 {
				continue
			}
			if existing, ok := merged[e.Item.Key]; ok {
				existing.KeywordScore = score
				continue
			}
			merged[e.Item.Key] = &memory.HybridResult{
				SearchResult: memory.SearchResult{
					Key:       e.Item.Key,
					Text:      e.Item.Text,
					Value:     e.Item.Value,
					Timestamp: e.Item.Timestamp,
				},
				KeywordScore: score,
			}
			order = append(order, e.Item.Key)
		}
	}

	results := make([]memory.HybridResult, 0, len(order))
	for _, key := range order {
		r := merged[key]
		r.HybridScore = semanticWeight*r.SemanticScore + (1-semanticWeight)*r.KeywordScore
		results = append(results, *r)
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].HybridScore > results[b].HybridScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

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

// Delete removes the first item with the given key. The chromem document is
// deleted by ID; no rebuild of the remaining items.
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
	for i, e := range s.entries {
		if e.Item.Key == key {
			pos = i
			break
		}
	}
	if pos == -1 {
		return false, nil
	}

	if err := s.col.Delete(ctx, nil, nil, s.entries[pos].ID); err != nil {
		return false, fmt.Errorf("chromem: delete document: %w", err)
	}
	s.entries = append(s.entries[:pos], s.entries[pos+1:]...)

	if err := s.saveEntriesLocked(); err != nil {
		return true, fmt.Errorf("chromem: delete %q persisted in memory only: %w", key, err)
	}
	return true, nil
}

// Update is delete + re-store, same contract as the flat backend.
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

// Stats reports the administrative snapshot. IndexSize comes from the live
// collection so invariant violations are visible.
func (s *Store) Stats(ctx context.Context) (memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memory.Stats{}, memory.ErrClosed
	}

	st := memory.Stats{
		TotalItems:        len(s.entries),
		IndexSize:         s.col.Count(),
		Dimensions:        s.embedder.Dimensions(),
		ModelName:         s.model,
		IndexFileBytes:    dirSize(filepath.Join(s.dir, dbDirName)),
		MetadataFileBytes: fileSize(filepath.Join(s.dir, metaFileName)),
		StoragePath:       s.dir,
	}
	for _, e := range s.entries {
		if st.OldestItem == "" || e.Item.Timestamp < st.OldestItem {
			st.OldestItem = e.Item.Timestamp
		}
		if e.Item.Timestamp > st.NewestItem {
			st.NewestItem = e.Item.Timestamp
		}
	}
	return st, nil
}

// Clear drops the collection and the metadata file.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.ErrClosed
	}

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("chromem: delete collection: %w", err)
	}
	if err := s.openCollectionLocked(); err != nil {
		return err
	}
	s.entries = nil

	if err := os.Remove(filepath.Join(s.dir, metaFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chromem: remove metadata: %w", err)
	}
	log.Printf("[MEMORY] Cleared chromem store at %s", s.dir)
	return nil
}

// Backup exports the database and copies the metadata file into dir.
func (s *Store) Backup(ctx context.Context, dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memory.ErrClosed
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("chromem: create backup dir: %w", err)
	}
	if err := s.db.ExportToFile(filepath.Join(dir, exportFileName), false, ""); err != nil {
		return fmt.Errorf("chromem: export: %w", err)
	}

	src := filepath.Join(s.dir, metaFileName)
	if _, err := os.Stat(src); err == nil {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("chromem: read metadata: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, metaFileName), data, 0o644); err != nil {
			return fmt.Errorf("chromem: backup metadata: %w", err)
		}
	}
	return nil
}

// Restore imports a backup made by Backup and reloads the entry list.
func (s *Store) Restore(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.ErrClosed
	}

	if err := s.db.ImportFromFile(filepath.Join(dir, exportFileName), ""); err != nil {
		return fmt.Errorf("chromem: import: %w", err)
	}
	if err := s.openCollectionLocked(); err != nil {
		return err
	}

	src := filepath.Join(dir, metaFileName)
	if data, err := os.ReadFile(src); err == nil {
		if err := os.WriteFile(filepath.Join(s.dir, metaFileName), data, 0o644); err != nil {
			return fmt.Errorf("chromem: restore metadata: %w", err)
		}
	}
	return s.loadEntriesLocked()
}

// Close marks the store closed; chromem persists synchronously so there is
// nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
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

func dirSize(path string) int64 {
	var total int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
