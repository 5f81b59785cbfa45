// Package grader implements the binary quality checks that steer the answer
// workflow: document relevance, factual grounding, and answer usefulness.
// Each grader asks the model for a JSON verdict and falls back to a lenient
// default when the reply cannot be parsed.
package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragchat/internal/llm"
)

const relevancePrompt = `You are a grader assessing relevance of a retrieved document to a user question. If the document contains keywords related to the user question, grade it as relevant. It does not need to be a stringent test. The goal is to filter out erroneous retrievals.
Give a binary score 'yes' or 'no' to indicate whether the document is relevant to the question.
Provide the binary score as a JSON with a single key 'score' and no preamble or explanation.`

const groundingPrompt = `You are a grader assessing whether an answer is grounded in / supported by a set of facts. Give a binary 'yes' or 'no' score to indicate whether the answer is grounded in / supported by a set of facts. Provide the binary score as a JSON with a single key 'score' and no preamble or explanation.`

const usefulnessPrompt = `You are a grader assessing whether an answer is useful to resolve a question. Give a binary score 'yes' or 'no' to indicate whether the answer is useful to resolve a question. Provide the binary score as a JSON with a single key 'score' and no preamble or explanation.`

// Grader runs the three verdict checks against a model.
type Grader struct {
	model llm.Model
}

// New creates a Grader backed by the given model.
func New(model llm.Model) (*Grader, error) {
	if model == nil {
		return nil, fmt.Errorf("grader: model must not be nil")
	}
	return &Grader{model: model}, nil
}

// Relevant reports whether a document is relevant to the question.
// Unparseable verdicts count as not relevant.
func (g *Grader) Relevant(ctx context.Context, question, document string) (bool, error) {
	prompt := fmt.Sprintf("Here is the retrieved document:\n\n%s\n\nHere is the user question: %s", document, question)
	out, err := g.model.Generate(ctx, llm.Request{System: relevancePrompt, Prompt: prompt})
	if err != nil {
		return false, fmt.Errorf("grader: relevance: %w", err)
	}
	return parseScore(out, false), nil
}

// Grounded reports whether a generation is supported by the documents.
// Unparseable verdicts count as grounded, so a flaky grader never forces a
// regeneration loop.
func (g *Grader) Grounded(ctx context.Context, documents, generation string) (bool, error) {
	prompt := fmt.Sprintf("Here are the facts:\n-------\n%s\n-------\nHere is the answer: %s", documents, generation)
	out, err := g.model.Generate(ctx, llm.Request{System: groundingPrompt, Prompt: prompt})
	if err != nil {
		return false, fmt.Errorf("grader: grounding: %w", err)
	}
	return parseScore(out, true), nil
}

// Useful reports whether a generation resolves the question. Unparseable
// verdicts count as useful.
func (g *Grader) Useful(ctx context.Context, question, generation string) (bool, error) {
	prompt := fmt.Sprintf("Here is the answer:\n-------\n%s\n-------\nHere is the question: %s", generation, question)
	out, err := g.model.Generate(ctx, llm.Request{System: usefulnessPrompt, Prompt: prompt})
	if err != nil {
		return false, fmt.Errorf("grader: usefulness: %w", err)
	}
	return parseScore(out, true), nil
}

// parseScore extracts the yes/no verdict from a model reply. It accepts
// plain JSON, code-fenced JSON, and a bare yes/no answer.
func parseScore(out string, fallback bool) bool {
	out = strings.TrimSpace(out)
	if fenced := stripFence(out); fenced != "" {
		out = fenced
	}

	var verdict struct {
		Score string `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &verdict); err == nil && verdict.Score != "" {
		return strings.EqualFold(strings.TrimSpace(verdict.Score), "yes")
	}

	switch strings.ToLower(strings.Trim(out, ` ."'`)) {
	case "yes":
		return true
	case "no":
		return false
	}
	return fallback
}

func stripFence(out string) string {
	if !strings.HasPrefix(out, "```") {
		return ""
	}
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	if idx := strings.LastIndex(out, "```"); idx >= 0 {
		out = out[:idx]
	}
	return strings.TrimSpace(out)
}
