package search

import (
	"context"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/filter"
	"github.com/obig20/docorganizer/internal/index/keyword"
	"github.com/obig20/docorganizer/internal/index/vector"
)

// KeywordIndex is the full-text index contract consumed by the orchestrator.
type KeywordIndex interface {
	Query(ctx context.Context, text string, f filter.Filters, limit int) ([]keyword.Hit, error)
	Recent(ctx context.Context, limit int) ([]keyword.Hit, error)
	Get(ctx context.Context, id string) (domain.KeywordEntry, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
	Available() bool
}

// VectorIndex is the nearest-neighbor index contract consumed by the
// orchestrator.
type VectorIndex interface {
	Search(query []float32, k int) ([]vector.Hit, error)
	Count() int
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentSearcher is the document store's substring search, used only when
// the keyword index is degraded.
type DocumentSearcher interface {
	Search(ctx context.Context, query, category string, limit int) ([]domain.Document, error)
}
