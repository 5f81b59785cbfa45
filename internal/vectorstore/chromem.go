package vectorstore

import (
	"context"
	"fmt"
	"maps"

	chromem "github.com/philippgille/chromem-go"

	"ragchat/internal/document"
)

// ChromemStore persists chunks in chromem-go, an embedded Chroma-style
// vector database. Embeddings are always supplied by the caller, so no
// embedding function is registered with the collection.
type ChromemStore struct {
	collection *chromem.Collection
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore opens (or creates) a persistent collection under
// persistDir. An empty persistDir keeps the database in memory.
func NewChromemStore(persistDir, collectionName string) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open chromem db at %s: %w", persistDir, err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: collection %s: %w", collectionName, err)
	}

	return &ChromemStore{collection: col}, nil
}

// Add indexes documents with their embeddings.
func (s *ChromemStore) Add(ctx context.Context, docs []document.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("vectorstore: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	for i, doc := range docs {
		meta := map[string]string{"source": doc.Source}
		maps.Copy(meta, doc.Metadata)

		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: embeddings[i],
			Metadata:  meta,
		})
		if err != nil {
			return fmt.Errorf("vectorstore: add %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Search returns up to k nearest chunks. chromem rejects queries asking for
// more results than the collection holds, so k is clamped first.
func (s *ChromemStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vectorstore: k must be positive, got %d", k)
	}

	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}

	results, err := s.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		doc := document.Document{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Metadata["source"],
			Metadata: r.Metadata,
		}
		out = append(out, SearchResult{Document: doc, Score: float64(r.Similarity)})
	}
	return out, nil
}

// Count reports the number of indexed chunks.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
