package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/prapp/rag/internal/core"
)

// MemoryStore is an in-process core.VectorIndex: a brute-force L2 scan
// over per-user collections. It backs tests and ragctl --memory runs and
// mirrors the Milvus store's contract exactly.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]core.Chunk // collection -> chunk ID -> chunk
}

// NewMemoryStore creates an empty in-memory index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]core.Chunk)}
}

// Add upserts chunks into the user's collection, overwriting colliding IDs.
func (s *MemoryStore) Add(ctx context.Context, userID string, chunks []core.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := CollectionName(userID)
	coll := s.collections[name]
	if coll == nil {
		coll = make(map[string]core.Chunk)
		s.collections[name] = coll
	}
	for _, c := range chunks {
		coll[c.ID] = c
	}
	return nil
}

// Search scans the user's collection and returns at most topK chunks by
// ascending L2 distance. A missing collection yields an empty result.
func (s *MemoryStore) Search(ctx context.Context, userID string, vector []float32, topK int, filter map[string]string) ([]core.ScoredChunk, error) {
	if topK <= 0 {
		topK = core.DefaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[CollectionName(userID)]
	if len(coll) == 0 {
		return []core.ScoredChunk{}, nil
	}

	results := make([]core.ScoredChunk, 0, len(coll))
	for _, c := range coll {
		if !matchesFilter(c.Metadata, filter) {
			continue
		}
		d, err := l2Distance(vector, c.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, core.ScoredChunk{Text: c.Text, Metadata: c.Metadata, Distance: d})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteDocument removes every chunk of the document. No-op when nothing
// matches.
func (s *MemoryStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[CollectionName(userID)]
	for id, c := range coll {
		if c.Metadata.DocumentID == documentID {
			delete(coll, id)
		}
	}
	return nil
}

// PruneDocument removes the document's chunks with index >= keep.
func (s *MemoryStore) PruneDocument(ctx context.Context, userID, documentID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[CollectionName(userID)]
	for id, c := range coll {
		if c.Metadata.DocumentID == documentID && c.Metadata.ChunkIndex >= keep {
			delete(coll, id)
		}
	}
	return nil
}

// CountDocuments returns the number of distinct documents in the user's
// collection.
func (s *MemoryStore) CountDocuments(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, c := range s.collections[CollectionName(userID)] {
		seen[c.Metadata.DocumentID] = struct{}{}
	}
	return len(seen), nil
}

// Reset drops the user's collection. Idempotent.
func (s *MemoryStore) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, CollectionName(userID))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func matchesFilter(m core.ChunkMetadata, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	bag := m.ToMap()
	for k, want := range filter {
		got, ok := bag[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func l2Distance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum)), nil
}

var _ core.VectorIndex = (*MemoryStore)(nil)
