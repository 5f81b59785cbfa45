package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeModel is a scripted Model for tests. Rules map a substring of the
// prompt (or system message) to a canned response; unmatched prompts get
// Default. Responses are consumed per rule in order when a rule has several.
type FakeModel struct {
	mu      sync.Mutex
	rules   []fakeRule
	Default string
	Err     error

	// Prompts records every request, in order.
	Prompts []Request
}

type fakeRule struct {
	substring string
	responses []string
	next      int
}

var _ Model = (*FakeModel)(nil)

// NewFakeModel creates a fake with the given default response.
func NewFakeModel(defaultResponse string) *FakeModel {
	return &FakeModel{Default: defaultResponse}
}

// Respond registers responses returned (in sequence) for prompts containing
// substring. The last response repeats once the sequence is exhausted.
func (f *FakeModel) Respond(substring string, responses ...string) *FakeModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{substring: substring, responses: responses})
	return f
}

// Generate matches the request against the scripted rules.
func (f *FakeModel) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, req)
	if f.Err != nil {
		return "", f.Err
	}

	haystack := req.System + "\n" + req.Prompt
	for i := range f.rules {
		rule := &f.rules[i]
		if strings.Contains(haystack, rule.substring) {
			idx := rule.next
			if idx >= len(rule.responses) {
				idx = len(rule.responses) - 1
			}
			rule.next++
			return rule.responses[idx], nil
		}
	}
	return f.Default, nil
}

// FakeEmbedder returns deterministic embeddings keyed by text, or a fixed
// fallback vector.
type FakeEmbedder struct {
	Vectors  map[string][]float32
	Fallback []float32
	Err      error
}

var _ Embedder = (*FakeEmbedder)(nil)

// NewFakeEmbedder creates a fake embedder with the given fallback vector.
func NewFakeEmbedder(fallback ...float32) *FakeEmbedder {
	if len(fallback) == 0 {
		fallback = []float32{1, 0, 0}
	}
	return &FakeEmbedder{Vectors: make(map[string][]float32), Fallback: fallback}
}

func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[text]; ok {
		return v, nil
	}
	return f.Fallback, nil
}

func (f *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("fake embed %q: %w", t, err)
		}
		out = append(out, v)
	}
	return out, nil
}
