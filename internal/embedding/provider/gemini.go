package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"kdstore/internal/embedding"

	"google.golang.org/genai"
)

const GeminiModel = "text-embedding-004"

// GeminiProvider embeds text with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ embedding.Provider = (*GeminiProvider)(nil)

// NewGeminiProvider reads GEMINI_API_KEY, and GEMINI_BASE_URL when set.
func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	apiKey, exists := os.LookupEnv("GEMINI_API_KEY")
	if !exists || apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not found")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: os.Getenv("GEMINI_BASE_URL")},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, model: envOr("GEMINI_EMBEDDING_MODEL", GeminiModel)}, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (g *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.Text(text)...)
	}

	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	embeddings := make([][]float64, len(result.Embeddings))
	for i, e := range result.Embeddings {
		embeddings[i] = toFloat64(e.Values)
	}
	return embeddings, nil
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
