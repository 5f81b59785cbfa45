package document

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter chunks loaded documents before embedding. It wraps langchaingo's
// recursive character splitter.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter creates a Splitter with the given chunk size and overlap.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks a document, carrying the source metadata onto every chunk.
func (s *Splitter) Split(doc Document) ([]Document, error) {
	chunks, err := s.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("document: split %s: %w", doc.Source, err)
	}

	out := make([]Document, 0, len(chunks))
	for i, chunk := range chunks {
		c := New(doc.Source, i, chunk)
		c.Metadata["chunk_index"] = fmt.Sprintf("%d", i)
		c.Metadata["chunk_total"] = fmt.Sprintf("%d", len(chunks))
		out = append(out, c)
	}
	return out, nil
}

// SplitAll chunks a batch of documents.
func (s *Splitter) SplitAll(docs []Document) ([]Document, error) {
	var out []Document
	for _, doc := range docs {
		chunks, err := s.Split(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}
