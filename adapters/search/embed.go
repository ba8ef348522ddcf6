package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiEmbeddingClient mirrors the subset of the OpenAI SDK's Embeddings
// service the adapter needs, the same narrowing adapters/llm applies to
// its Chat Completions client.
type openaiEmbeddingClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAIEmbedder implements Embedder on top of the OpenAI Embeddings API.
// Anthropic and Bedrock are not wired here: neither the Anthropic SDK nor
// this repository's Bedrock grounding exposes a dedicated embeddings call,
// while OpenAI's Embeddings service is a direct, already-imported
// dependency with a matching one-request/many-texts shape (see DESIGN.md).
type OpenAIEmbedder struct {
	svc   openaiEmbeddingClient
	model string
}

// NewOpenAIEmbedder builds an OpenAIEmbedder from an API key and embedding
// model identifier (e.g. "text-embedding-3-small").
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("search/embed: api key is required")
	}
	if model == "" {
		return nil, errors.New("search/embed: model is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEmbedder{svc: &openaiEmbeddingsAdapter{svc: &client.Embeddings}, model: model}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.svc.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("search/embed: embeddings.new: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

// openaiEmbeddingsAdapter adapts *openai.EmbeddingService (the concrete SDK
// client) to openaiEmbeddingClient.
type openaiEmbeddingsAdapter struct {
	svc *openai.EmbeddingService
}

func (a *openaiEmbeddingsAdapter) New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	return a.svc.New(ctx, body, opts...)
}
