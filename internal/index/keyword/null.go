package keyword

import (
	"context"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/filter"
)

// Null is the no-op keyword backend used when the index dependency is
// unavailable at startup. Reads return empty results, writes are dropped,
// and no method raises for the missing capability.
type Null struct{}

var _ Index = (*Null)(nil)

// NewNull creates the no-op backend.
func NewNull() *Null { return &Null{} }

func (*Null) Upsert(context.Context, domain.KeywordEntry) error { return nil }

func (*Null) Query(context.Context, string, filter.Filters, int) ([]Hit, error) {
	return nil, nil
}

func (*Null) Recent(context.Context, int) ([]Hit, error) { return nil, nil }

func (*Null) Get(context.Context, string) (domain.KeywordEntry, error) {
	return domain.KeywordEntry{}, domain.ErrDocumentNotFound
}

func (*Null) Delete(context.Context, string) error { return nil }

func (*Null) Suggest(context.Context, string, int) ([]string, error) { return nil, nil }

func (*Null) IDs(context.Context) ([]string, error) { return nil, nil }

func (*Null) Count(context.Context) (int, error) { return 0, nil }

func (*Null) Available() bool { return false }

func (*Null) Close() error { return nil }
