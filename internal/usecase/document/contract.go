package document

import (
	"context"

	"github.com/obig20/docorganizer/internal/domain"
)

// Store is the system-of-record contract for document metadata and text.
type Store interface {
	Save(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context, category string, limit int) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Indexer keeps the search indices in step with the store.
type Indexer interface {
	IndexDocument(ctx context.Context, doc domain.Document) error
	RemoveDocument(ctx context.Context, id string) error
}
