package workflow

import (
	"context"
	"fmt"

	"ragchat/internal/document"
	"ragchat/internal/llm"
	"ragchat/internal/log"
	"ragchat/internal/vectorstore"
)

// Ingestor splits, embeds, and indexes documents into the vector store.
type Ingestor struct {
	splitter *document.Splitter
	embedder llm.Embedder
	store    vectorstore.Store
	logger   log.Logger
}

// NewIngestor assembles an Ingestor.
func NewIngestor(splitter *document.Splitter, embedder llm.Embedder, store vectorstore.Store, logger log.Logger) (*Ingestor, error) {
	if splitter == nil {
		return nil, fmt.Errorf("workflow: splitter must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("workflow: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("workflow: vector store must not be nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestor{splitter: splitter, embedder: embedder, store: store, logger: logger}, nil
}

// Ingest indexes the documents and returns the number of chunks added.
func (i *Ingestor) Ingest(ctx context.Context, docs ...document.Document) (int, error) {
	chunks, err := i.splitter.SplitAll(docs)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for idx, chunk := range chunks {
		texts[idx] = chunk.Content
	}
	embeddings, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("workflow: embed chunks: %w", err)
	}

	if err := i.store.Add(ctx, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("workflow: index chunks: %w", err)
	}
	i.logger.Infof("workflow: indexed %d chunks from %d documents", len(chunks), len(docs))
	return len(chunks), nil
}
