package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Provider computes dense vectors for a batch of texts, the way
// internal/llm.Client adapts chat completion for discovery's LLM ranker.
// Modelled on viant-agently's genai/embedder/provider.Embedder interface
// shape (Embed(ctx, texts) -> vectors), adapted to the real
// sashabaranov/go-openai embeddings endpoint instead of a hand-rolled HTTP
// client.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OpenAIProvider calls the OpenAI embeddings endpoint via the same client
// library internal/llm.OpenAIClient uses for chat completion.
type OpenAIProvider struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

func NewOpenAIProvider(apiKey, model string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key cannot be empty")
	}
	embeddingModel := openai.AdaEmbeddingV2
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	if dimension <= 0 {
		dimension = 1536
	}
	return &OpenAIProvider{
		client:    openai.NewClient(apiKey),
		model:     embeddingModel,
		dimension: dimension,
	}, nil
}

func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// MockProvider derives a deterministic pseudo-embedding from each text's
// JSON-stable byte content, for tests and for the "mock" embedding.provider
// config value. It never calls a network.
type MockProvider struct {
	dim int
}

func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 8
	}
	return &MockProvider{dim: dimension}
}

func (p *MockProvider) Dimension() int { return p.dim }

func (p *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, p.dim)
	}
	return vectors, nil
}

// deterministicVector hashes text into a seed and fills a unit-ish vector
// from it, so identical text always produces the identical vector and
// distinct text reliably produces distinct vectors without any randomness
// (randomness is disallowed: embeddings must be reproducible across runs
// for the cache-hit property).
func deterministicVector(text string, dim int) []float32 {
	seedBytes, _ := json.Marshal(text)
	var seed uint64 = 1469598103934665603 // FNV offset basis
	for _, b := range seedBytes {
		seed ^= uint64(b)
		seed *= 1099511628211 // FNV prime
	}
	vector := make([]float32, dim)
	state := seed
	for i := range vector {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vector[i] = float32(state%2000)/1000.0 - 1.0
	}
	return vector
}
