// Package indexer writes documents into the two retrieval indices. The
// keyword and vector indices are not transactionally linked: a document whose
// embedding fails stays keyword-searchable, and the gap is logged rather than
// surfaced as an indexing failure.
package indexer

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/metrics"
)

// Service is the indexing pipeline.
type Service struct {
	keyword KeywordIndex
	vector  VectorIndex
	embed   Embedder // nil when the embedding capability is absent
	docs    DocumentLister
	logger  *zap.Logger
	workers int
}

// New creates the indexer. embed may be nil (keyword-only indexing); docs may
// be nil when reindexing from the document store is not needed.
func New(kw KeywordIndex, vec VectorIndex, embed Embedder, docs DocumentLister, logger *zap.Logger) *Service {
	return &Service{
		keyword: kw,
		vector:  vec,
		embed:   embed,
		docs:    docs,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// WithWorkers sets the reindex embedding concurrency.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// IndexDocument makes a document searchable. The keyword upsert must succeed;
// the vector write is best-effort and its failure leaves the document
// keyword-searchable only.
func (s *Service) IndexDocument(ctx context.Context, doc domain.Document) error {
	if err := s.keyword.Upsert(ctx, doc.Entry()); err != nil {
		metrics.DocumentsIndexedTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("upsert keyword entry %s: %w", doc.ID, err)
	}

	if !s.addVector(ctx, doc) {
		metrics.DocumentsIndexedTotal.WithLabelValues("keyword_only").Inc()
		s.updateSizeGauges(ctx)
		return nil
	}

	if err := s.vector.Persist(); err != nil {
		s.logger.Warn("vector index persist failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}

	metrics.DocumentsIndexedTotal.WithLabelValues("full").Inc()
	s.updateSizeGauges(ctx)
	return nil
}

// RemoveDocument drops a document from both indices. The vector side is
// tombstoned; rows are reclaimed by Compact.
func (s *Service) RemoveDocument(ctx context.Context, id string) error {
	if err := s.keyword.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete keyword entry %s: %w", id, err)
	}
	if s.vector.Delete(id) > 0 {
		if err := s.vector.Persist(); err != nil {
			s.logger.Warn("vector index persist failed",
				zap.String("document_id", id),
				zap.Error(err),
			)
		}
	}
	s.updateSizeGauges(ctx)
	return nil
}

// Reindex rebuilds both indices from the document store. Index entries whose
// backing document is gone are removed first, so the indices converge on the
// store rather than only accumulating. Embedding calls run on a bounded
// worker pool so one slow call does not serialize the batch; index writes are
// serialized by the indices themselves.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.docs == nil {
		return 0, fmt.Errorf("no document store configured for reindex")
	}

	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	if err := s.pruneStale(ctx, docs); err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			return s.IndexDocument(ctx, doc)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	if err := s.vector.Persist(); err != nil {
		s.logger.Warn("vector index persist failed after reindex", zap.Error(err))
	}

	s.logger.Info("reindex complete", zap.Int("documents", len(docs)))
	return len(docs), nil
}

// pruneStale removes index entries for documents no longer present in the
// store. The store is the system of record.
func (s *Service) pruneStale(ctx context.Context, docs []domain.Document) error {
	indexed, err := s.keyword.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list indexed ids: %w", err)
	}

	stored := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		stored[doc.ID] = struct{}{}
	}

	pruned := 0
	for _, id := range indexed {
		if _, ok := stored[id]; ok {
			continue
		}
		if err := s.keyword.Delete(ctx, id); err != nil {
			return fmt.Errorf("remove stale entry %s: %w", id, err)
		}
		s.vector.Delete(id)
		pruned++
	}
	if pruned > 0 {
		s.logger.Info("pruned stale index entries", zap.Int("count", pruned))
	}
	return nil
}

// addVector reports whether a vector row was written. Empty content skips the
// vector index entirely; embedding or write failures are logged as warnings
// and never propagate.
func (s *Service) addVector(ctx context.Context, doc domain.Document) bool {
	if doc.Content == "" || s.embed == nil {
		return false
	}

	emb, err := s.embed.Embed(ctx, doc.Content)
	if err != nil {
		s.logger.Warn("embedding failed, document is keyword-searchable only",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return false
	}

	if err := s.vector.Add(doc.ID, emb.Embedding); err != nil {
		s.logger.Warn("vector index write failed, document is keyword-searchable only",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Service) updateSizeGauges(ctx context.Context) {
	if n, err := s.keyword.Count(ctx); err == nil {
		metrics.KeywordIndexSize.Set(float64(n))
	}
	metrics.VectorIndexSize.Set(float64(s.vector.Count()))
}
