// Package vectorstore provides similarity search over embedded document
// chunks. The chromem backend is the production store; the in-memory store
// backs tests and throwaway sessions.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragchat/internal/document"
)

// SearchResult pairs a document with its similarity score (higher is closer).
type SearchResult struct {
	Document document.Document
	Score    float64
}

// Store indexes embedded document chunks for nearest-neighbor search.
type Store interface {
	Add(ctx context.Context, docs []document.Document, embeddings [][]float32) error
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error)
	Count() int
}

// MemoryStore is a cosine-similarity store kept entirely in memory.
type MemoryStore struct {
	mu         sync.RWMutex
	documents  []document.Document
	embeddings [][]float32
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add stores documents with their embeddings.
func (s *MemoryStore) Add(_ context.Context, docs []document.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("vectorstore: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, docs...)
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

// Search returns the k nearest documents by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vectorstore: k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.documents))
	for i, emb := range s.embeddings {
		results = append(results, SearchResult{
			Document: s.documents[i],
			Score:    cosineSimilarity(queryEmbedding, emb),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Count reports the number of indexed chunks.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
