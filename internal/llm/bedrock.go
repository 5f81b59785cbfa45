package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockAPI is the minimal Bedrock runtime interface required by the
// clients below. Defined here for testability.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockModel generates answers with an Anthropic model hosted on Bedrock.
type BedrockModel struct {
	api     bedrockAPI
	modelID string
	opts    BedrockModelOptions
}

// BedrockModelOptions sets defaults applied when a request leaves the
// corresponding field zero.
type BedrockModelOptions struct {
	MaxTokens   int
	Temperature float64
}

var _ Model = (*BedrockModel)(nil)

// NewBedrockModel wraps a Bedrock runtime client for the given model ID
// (e.g. anthropic.claude-3-haiku-20240307-v1:0).
func NewBedrockModel(api bedrockAPI, modelID string, opts BedrockModelOptions) (*BedrockModel, error) {
	if api == nil {
		return nil, fmt.Errorf("llm: bedrock api must not be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("llm: model id must not be empty")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	return &BedrockModel{api: api, modelID: modelID, opts: opts}, nil
}

// Anthropic messages payload for Bedrock InvokeModel.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

// Generate invokes the model once and returns the concatenated text blocks.
func (m *BedrockModel) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.opts.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = m.opts.Temperature
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           req.System,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: req.Prompt}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	out, err := m.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("llm: invoke %s: %w", m.modelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// BedrockEmbedder computes embeddings with a Titan text embedding model.
type BedrockEmbedder struct {
	api     bedrockAPI
	modelID string
}

var _ Embedder = (*BedrockEmbedder)(nil)

// NewBedrockEmbedder wraps a Bedrock runtime client for the given embedding
// model ID (e.g. amazon.titan-embed-text-v1).
func NewBedrockEmbedder(api bedrockAPI, modelID string) (*BedrockEmbedder, error) {
	if api == nil {
		return nil, fmt.Errorf("llm: bedrock api must not be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("llm: embedding model id must not be empty")
	}
	return &BedrockEmbedder{api: api, modelID: modelID}, nil
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for one text.
func (e *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal embed request: %w", err)
	}

	out, err := e.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embed with %s: %w", e.modelID, err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("llm: decode embedding: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("llm: empty embedding from %s", e.modelID)
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds texts one by one; Titan has no batch endpoint.
func (e *BedrockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}
