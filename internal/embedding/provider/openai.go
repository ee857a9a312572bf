package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"kdstore/internal/embedding"
)

const (
	OpenAIModel  = "text-embedding-3-small"
	OpenAIAPIURL = "https://api.openai.com/v1/embeddings"

	AliyunModel  = "text-embedding-v4"
	AliyunAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
)

// HTTPProvider calls an OpenAI compatible embeddings endpoint. OpenAI and
// DashScope both speak this protocol.
type HTTPProvider struct {
	name   string
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

var _ embedding.Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider for any OpenAI compatible endpoint.
func NewHTTPProvider(name, apiKey, apiURL, model string) *HTTPProvider {
	return &HTTPProvider{
		name:   name,
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewOpenAIProvider reads OPENAI_API_KEY, and OPENAI_API_URL when set.
func NewOpenAIProvider() (*HTTPProvider, error) {
	apiKey, exists := os.LookupEnv("OPENAI_API_KEY")
	if !exists {
		return nil, errors.New("OPENAI_API_KEY not found")
	}
	return NewHTTPProvider("OpenAI", apiKey, envOr("OPENAI_API_URL", OpenAIAPIURL), envOr("OPENAI_EMBEDDING_MODEL", OpenAIModel)), nil
}

// NewAliyunProvider reads DASHSCOPE_API_KEY, and DASHSCOPE_API_URL when set.
func NewAliyunProvider() (*HTTPProvider, error) {
	apiKey, exists := os.LookupEnv("DASHSCOPE_API_KEY")
	if !exists {
		return nil, errors.New("DASHSCOPE_API_KEY not found")
	}
	return NewHTTPProvider("DashScope", apiKey, envOr("DASHSCOPE_API_URL", AliyunAPIURL), AliyunModel), nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *HTTPProvider) getEmbeddings(ctx context.Context, input any) (*EmbeddingResponse, error) {
	bodyBytes, err := json.Marshal(&EmbeddingRequest{
		Model:          e.model,
		Input:          input,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s embeddings API returned status %d: %s", e.name, resp.StatusCode, string(respBody))
	}

	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, err
	}
	return &embeddingResp, nil
}

func (e *HTTPProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	response, err := e.getEmbeddings(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return response.Data[0].Embedding, nil
}

func (e *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	response, err := e.getEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	embeddings := make([][]float64, len(response.Data))
	seen := make([]bool, len(response.Data))
	for _, item := range response.Data {
		idx := item.Index
		if idx < 0 || idx >= len(embeddings) {
			return nil, fmt.Errorf("%s returned embedding index %d for %d inputs", e.name, idx, len(texts))
		}
		if seen[idx] {
			return nil, fmt.Errorf("%s returned embedding index %d twice", e.name, idx)
		}
		seen[idx] = true
		embeddings[idx] = item.Embedding
	}
	return embeddings, nil
}
