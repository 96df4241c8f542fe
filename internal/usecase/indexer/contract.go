package indexer

import (
	"context"

	"github.com/obig20/docorganizer/internal/domain"
)

// KeywordIndex is the write-side contract of the full-text index.
type KeywordIndex interface {
	Upsert(ctx context.Context, entry domain.KeywordEntry) error
	Delete(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// VectorIndex is the write-side contract of the nearest-neighbor index.
type VectorIndex interface {
	Add(id string, vec []float32) error
	Delete(id string) int
	Persist() error
	Count() int
}

// Embedder vectorizes document content.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentLister feeds a full reindex from the relational document store.
type DocumentLister interface {
	ListAll(ctx context.Context) ([]domain.Document, error)
}
