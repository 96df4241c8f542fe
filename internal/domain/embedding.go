package domain

import "context"

// DefaultEmbeddingDim is the embedding dimension used when the provider does
// not specify one (matches all-MiniLM-class sentence encoders).
const DefaultEmbeddingDim = 384

// EmbeddingResult is the outcome of a single embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a fixed-length embedding. Implementations are
// treated as black boxes: availability is decided once at startup, and no
// cross-call determinism is assumed beyond the model version.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}
