// Package search implements the search orchestrator: it routes a query
// between the recency, semantic, and keyword paths, converts raw distances
// into batch-relative similarities, applies structured filters uniformly, and
// shapes hits into display-ready results.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/request"
	"github.com/obig20/docorganizer/internal/domain/search/result"
	"github.com/obig20/docorganizer/internal/metrics"
	"github.com/obig20/docorganizer/internal/snippet"
)

// overFetchFactor is how many times the requested limit the semantic path
// pulls from the vector index before threshold- and filter-pruning.
const overFetchFactor = 2

// Service is the search orchestrator.
type Service struct {
	keyword    KeywordIndex
	vector     VectorIndex
	embed      Embedder         // nil when the embedding capability is absent
	docs       DocumentSearcher // nil when no store fallback is wired
	logger     *zap.Logger
	snippetLen int
}

// New creates the orchestrator. embed may be nil; the semantic path is then
// never attempted.
func New(kw KeywordIndex, vec VectorIndex, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		keyword:    kw,
		vector:     vec,
		embed:      embed,
		logger:     logger,
		snippetLen: snippet.DefaultMaxLength,
	}
}

// WithStoreFallback wires the document store's substring search in as a last
// resort for queries the degraded keyword index cannot answer.
func (s *Service) WithStoreFallback(docs DocumentSearcher) *Service {
	s.docs = docs
	return s
}

// WithSnippetLength overrides the snippet window size.
func (s *Service) WithSnippetLength(n int) *Service {
	if n > 0 {
		s.snippetLen = n
	}
	return s
}

// Search routes the request to the recency, semantic, or keyword path and
// returns ranked results with the total hit count.
//
// Semantic degradation is never caller-visible: any failure inside the
// semantic path falls back to keyword search for this one query. A deadline
// expiry is the exception: it returns a timeout error with no partial
// results.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, timeoutErr(err)
	}

	start := time.Now()
	resolved := func(path string) {
		metrics.SearchesTotal.WithLabelValues(path).Inc()
		metrics.SearchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}

	if !req.HasQuery() && req.Filters().IsEmpty() {
		results, err := s.Recent(ctx, req.Limit())
		if err != nil {
			return nil, 0, err
		}
		resolved(metrics.SearchPathRecent)
		return results, len(results), nil
	}

	if s.semanticEligible(req) {
		out := s.trySemantic(ctx, req)
		switch out.kind {
		case outcomeSemantic:
			resolved(metrics.SearchPathSemantic)
			return out.hits, len(out.hits), nil
		case outcomeTimeout:
			return nil, 0, timeoutErr(out.cause)
		case outcomeFallback:
			metrics.SearchesTotal.WithLabelValues(metrics.SearchPathFallback).Inc()
			s.logger.Warn("semantic search unavailable for this query, falling back to keyword",
				zap.String("reason", out.reason),
				zap.Error(out.cause),
			)
		}
	}

	if !s.keyword.Available() && s.docs != nil && req.HasQuery() {
		results, err := s.storeFallback(ctx, req)
		if err != nil {
			return nil, 0, err
		}
		resolved(metrics.SearchPathStore)
		return results, len(results), nil
	}

	hits, err := s.keyword.Query(ctx, req.Query(), req.Filters(), req.Limit())
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, timeoutErr(err)
		}
		// Missing capability or backend trouble degrades to an empty
		// result set rather than a caller-visible failure.
		s.logger.Error("keyword search failed", zap.Error(err))
		return nil, 0, nil
	}

	resolved(metrics.SearchPathKeyword)
	results := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, s.buildResult(h.Entry, h.Score, req.Query()))
	}
	return results, len(results), nil
}

// Recent returns the most recently updated documents, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]result.Result, error) {
	hits, err := s.keyword.Recent(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutErr(err)
		}
		s.logger.Error("recent documents lookup failed", zap.Error(err))
		return nil, nil
	}

	results := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, s.buildResult(h.Entry, h.Score, ""))
	}
	return results, nil
}

// Suggest returns autocomplete candidates for a partial query. Callers must
// tolerate an empty result.
func (s *Service) Suggest(ctx context.Context, partial string) ([]string, error) {
	titles, err := s.keyword.Suggest(ctx, partial, request.DefaultLimit)
	if err != nil {
		s.logger.Warn("suggestions lookup failed", zap.Error(err))
		return nil, nil
	}
	return titles, nil
}

// semanticEligible also requires a live keyword index: the semantic path
// re-fetches every hit's keyword entry for filtering and result building.
func (s *Service) semanticEligible(req *request.Request) bool {
	return req.HasQuery() &&
		req.UseSemantic() &&
		s.embed != nil &&
		s.vector != nil &&
		s.vector.Count() > 0 &&
		s.keyword.Available()
}

// trySemantic runs one semantic attempt and reports a tagged outcome. It
// over-fetches 2x the limit, converts distances to batch-relative
// similarities, drops hits under the threshold, and re-checks every active
// filter against the backing keyword entry. There is no second round-trip
// when fewer than limit hits survive.
func (s *Service) trySemantic(ctx context.Context, req *request.Request) semanticOutcome {
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		if ctx.Err() != nil {
			return timedOut(err)
		}
		return fallback("embed query", err)
	}

	k := overFetchFactor * req.Limit()
	if total := s.vector.Count(); k > total {
		k = total
	}

	hits, err := s.vector.Search(emb.Embedding, k)
	if err != nil {
		return fallback("vector search", err)
	}

	sims := similarities(hits)
	results := make([]result.Result, 0, req.Limit())
	for i, h := range hits {
		if sims[i] < req.SimilarityThreshold() {
			continue
		}

		entry, err := s.keyword.Get(ctx, h.ID)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			// Cross-index inconsistency: the vector row has no backing
			// keyword entry. Skip it, the state is tolerated.
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return timedOut(err)
			}
			return fallback("fetch keyword entry", err)
		}

		if !req.Filters().Matches(entry) {
			continue
		}

		results = append(results, s.buildResult(entry, sims[i], req.Query()))
		if len(results) >= req.Limit() {
			break
		}
	}

	return semanticHits(results)
}

// storeFallback answers a query through the document store's substring search
// when the keyword index is degraded. Tag and date filters still apply; the
// store only understands category natively.
func (s *Service) storeFallback(ctx context.Context, req *request.Request) ([]result.Result, error) {
	docs, err := s.docs.Search(ctx, req.Query(), req.Filters().Category, req.Limit())
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutErr(err)
		}
		s.logger.Error("store fallback search failed", zap.Error(err))
		return nil, nil
	}

	results := make([]result.Result, 0, len(docs))
	for _, doc := range docs {
		entry := doc.Entry()
		if !req.Filters().Matches(entry) {
			continue
		}
		results = append(results, s.buildResult(entry, 0, req.Query()))
	}
	return results, nil
}

func (s *Service) buildResult(entry domain.KeywordEntry, score float64, query string) result.Result {
	snip := snippet.Build(entry.Content, query, s.snippetLen)
	var highlighted string
	if query != "" {
		highlighted = snippet.Highlight(entry.Content, query)
	}
	return result.New(entry.ID, score, entry.Title, entry.Category, entry.CreatedDate, snip, highlighted)
}

func timeoutErr(cause error) error {
	return fmt.Errorf("%w: %s", domain.ErrSearchTimeout, cause)
}
