package adapter

import "context"

// EmbeddingAdapter wraps the external embedding API. One call embeds one
// batch; callers own batch splitting.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Dimension is the vector size the configured model produces.
	Dimension() int
}
