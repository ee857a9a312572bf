package embedding

import "context"

// Provider turns text into embeddings that can be stored in a tree.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
