// Package keyword implements the on-disk full-text index over document
// fields (title, content, category, tags, timestamps), backed by SQLite FTS5.
//
// The backend variant is negotiated once at construction: when the database
// cannot be opened the whole index degrades to a no-op backend that returns
// empty results, and the choice holds for the component's lifetime. Call
// sites never re-probe.
package keyword

import (
	"context"

	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/filter"
)

// Hit is a keyword index match with its relevance score. Scores are
// BM25-derived: monotonically non-decreasing in term-overlap count, higher is
// better. Recency queries carry zero scores.
type Hit struct {
	Entry domain.KeywordEntry
	Score float64
}

// Index is the keyword index contract. Upserts are serialized internally;
// reads may proceed concurrently and observe a consistent snapshot.
type Index interface {
	// Upsert atomically replaces any existing entry with the same ID.
	Upsert(ctx context.Context, entry domain.KeywordEntry) error
	// Query matches text against title and content and combines every
	// active filter with logical AND. An empty text query filters only.
	Query(ctx context.Context, text string, f filter.Filters, limit int) ([]Hit, error)
	// Recent returns entries sorted by updated date descending, ties broken
	// by created date descending.
	Recent(ctx context.Context, limit int) ([]Hit, error)
	// Get fetches a single entry by document ID, domain.ErrDocumentNotFound
	// when absent.
	Get(ctx context.Context, id string) (domain.KeywordEntry, error)
	// Delete removes an entry; deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
	// Suggest returns distinct titles matching a prefix, for autocomplete.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
	// IDs returns every indexed document ID, for reconciliation against the
	// document store.
	IDs(ctx context.Context) ([]string, error)
	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)
	// Available reports the backend capability chosen at construction.
	Available() bool
	Close() error
}

// Open negotiates the backend: the SQLite FTS5 index at path, or the no-op
// backend when that fails. The degradation is logged once here, never raised
// at call time.
func Open(path string, logger *zap.Logger) Index {
	idx, err := OpenSQLite(path)
	if err != nil {
		logger.Warn("keyword index unavailable, degrading to no-op backend",
			zap.String("path", path),
			zap.Error(err),
		)
		return NewNull()
	}
	return idx
}
