// Package llm abstracts the hosted model providers. Bedrock (Claude 3 Haiku
// for generation, Titan for embeddings) is the production provider; an
// OpenAI-compatible endpoint serves local development.
package llm

import "context"

// Request is a single-turn generation request. System may be empty.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Model generates text completions.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder converts text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
