package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/filter"
	"github.com/obig20/docorganizer/internal/domain/search/request"
	"github.com/obig20/docorganizer/internal/index/keyword"
	"github.com/obig20/docorganizer/internal/index/vector"
)

// --- Mocks ---

type mockKeyword struct {
	entries       map[string]domain.KeywordEntry
	queryHits     []keyword.Hit
	queryErr      error
	recentHits    []keyword.Hit
	recentErr     error
	suggestions   []string
	unavailable   bool
	queryCalled   bool
	recentCalled  bool
	lastQueryText string
}

func (m *mockKeyword) Query(_ context.Context, text string, _ filter.Filters, _ int) ([]keyword.Hit, error) {
	m.queryCalled = true
	m.lastQueryText = text
	return m.queryHits, m.queryErr
}

func (m *mockKeyword) Recent(context.Context, int) ([]keyword.Hit, error) {
	m.recentCalled = true
	return m.recentHits, m.recentErr
}

func (m *mockKeyword) Get(_ context.Context, id string) (domain.KeywordEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return domain.KeywordEntry{}, domain.ErrDocumentNotFound
	}
	return e, nil
}

func (m *mockKeyword) Suggest(context.Context, string, int) ([]string, error) {
	return m.suggestions, nil
}

func (m *mockKeyword) Available() bool { return !m.unavailable }

type mockDocSearcher struct {
	docs   []domain.Document
	err    error
	called bool
}

func (m *mockDocSearcher) Search(context.Context, string, string, int) ([]domain.Document, error) {
	m.called = true
	return m.docs, m.err
}

type mockVector struct {
	hits   []vector.Hit
	err    error
	count  int
	lastK  int
	called bool
}

func (m *mockVector) Search(_ []float32, k int) ([]vector.Hit, error) {
	m.called = true
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > k {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockVector) Count() int { return m.count }

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

// --- Helpers ---

func entry(id, category string, tags ...string) domain.KeywordEntry {
	return domain.KeywordEntry{
		ID:          id,
		Title:       "Document " + id,
		Content:     "This lease agreement is between landlord and tenant for housing unit 12B.",
		Category:    category,
		Tags:        tags,
		CreatedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func mustRequest(t *testing.T, query string, f filter.Filters, limit int, semantic bool, threshold float64) *request.Request {
	t.Helper()
	req, err := request.New(query, f, limit, semantic, threshold)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

// --- Tests ---

func TestSearch_RecentPathForEmptyQueryAndFilters(t *testing.T) {
	kw := &mockKeyword{recentHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	svc := New(kw, &mockVector{}, &mockEmbedder{}, zap.NewNop())

	results, total, err := svc.Search(context.Background(), mustRequest(t, "", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !kw.recentCalled {
		t.Error("expected recent path")
	}
	if kw.queryCalled {
		t.Error("keyword query must not run for the recency path")
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestSearch_SemanticPath(t *testing.T) {
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{
		"near": entry("near", "housing"),
		"far":  entry("far", "housing"),
	}}
	vec := &mockVector{
		count: 2,
		hits: []vector.Hit{
			{Position: 0, ID: "near", Distance: 1},
			{Position: 1, ID: "far", Distance: 4},
		},
	}
	emb := &mockEmbedder{vec: []float32{0.1}}
	svc := New(kw, vec, emb, zap.NewNop())

	results, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.called || !vec.called {
		t.Fatal("expected the semantic path to run")
	}
	if kw.queryCalled {
		t.Error("keyword query must not run when semantic succeeds")
	}
	// Batch-relative: near scores 1-1/4=0.75, far scores 0 and is dropped.
	if total != 1 {
		t.Fatalf("got %d results, want 1", total)
	}
	if results[0].DocumentID() != "near" {
		t.Errorf("got %s, want near", results[0].DocumentID())
	}
	if results[0].Score() != 0.75 {
		t.Errorf("score = %f, want 0.75", results[0].Score())
	}
	if !strings.Contains(results[0].Snippet(), "tenant") {
		t.Errorf("snippet %q does not contain query term", results[0].Snippet())
	}
	if !strings.Contains(results[0].Highlighted(), "<mark>tenant</mark>") {
		t.Errorf("highlighted content missing mark: %q", results[0].Highlighted())
	}
}

func TestSearch_ThresholdInvariant(t *testing.T) {
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{"1": entry("1", "housing")}}
	vec := &mockVector{count: 1, hits: []vector.Hit{{ID: "1", Distance: 3}}}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	// A single-hit batch normalizes its own distance to similarity 0,
	// which is below any positive threshold.
	results, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		if r.Score() < 0.9 {
			t.Errorf("result %s below threshold: %f", r.DocumentID(), r.Score())
		}
	}
}

func TestSearch_AllZeroBatchIsMaximalSimilarity(t *testing.T) {
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{"1": entry("1", "housing")}}
	vec := &mockVector{count: 1, hits: []vector.Hit{{ID: "1", Distance: 0}}}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	results, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Score() != 1 {
		t.Fatalf("exact match should score 1, got %+v", results)
	}
}

func TestSearch_SemanticAppliesFilters(t *testing.T) {
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{
		"a": entry("a", "housing", "lease"),
		"b": entry("b", "id_registry", "passport"),
	}}
	vec := &mockVector{
		count: 2,
		hits: []vector.Hit{
			{ID: "b", Distance: 0},
			{ID: "a", Distance: 1},
		},
	}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	results, _, err := svc.Search(context.Background(),
		mustRequest(t, "tenant", filter.Filters{Category: "housing"}, 10, true, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Category() != "housing" {
		t.Fatalf("category filter not enforced on semantic path: %+v", results)
	}
}

func TestSearch_SemanticOverFetchesTwiceLimit(t *testing.T) {
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{}}
	vec := &mockVector{count: 100}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	_, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.lastK != 20 {
		t.Fatalf("over-fetch k = %d, want 20", vec.lastK)
	}
}

func TestSearch_SemanticSkipsOrphanVectorRows(t *testing.T) {
	// Vector row without a backing keyword entry: tolerated, skipped.
	kw := &mockKeyword{entries: map[string]domain.KeywordEntry{"live": entry("live", "housing")}}
	vec := &mockVector{
		count: 2,
		hits: []vector.Hit{
			{ID: "orphan", Distance: 0},
			{ID: "live", Distance: 1},
		},
	}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	results, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID() != "live" {
		t.Fatalf("got %+v, want only the live document", results)
	}
}

func TestSearch_EmbedFailureFallsBackToKeyword(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing"), Score: 2.5}}}
	vec := &mockVector{count: 5}
	emb := &mockEmbedder{err: errors.New("model unreachable")}
	svc := New(kw, vec, emb, zap.NewNop())

	results, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if !kw.queryCalled {
		t.Fatal("expected keyword fallback")
	}
	if total != 1 || results[0].DocumentID() != "1" {
		t.Fatalf("got %+v", results)
	}
}

func TestSearch_VectorFailureFallsBackToKeyword(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	vec := &mockVector{count: 5, err: errors.New("index io error")}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	_, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if !kw.queryCalled || total != 1 {
		t.Fatal("expected keyword fallback result")
	}
}

func TestSearch_KeywordPathWhenSemanticDisabled(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	vec := &mockVector{count: 5}
	emb := &mockEmbedder{vec: []float32{1}}
	svc := New(kw, vec, emb, zap.NewNop())

	_, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, false, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.called {
		t.Error("embedder must not run with use_semantic=false")
	}
	if !kw.queryCalled {
		t.Error("expected keyword path")
	}
}

func TestSearch_KeywordPathWhenEmbedderAbsent(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	svc := New(kw, &mockVector{count: 5}, nil, zap.NewNop())

	_, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatal("expected keyword result with no embedder configured")
	}
}

func TestSearch_KeywordPathWhenVectorEmpty(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	vec := &mockVector{count: 0}
	svc := New(kw, vec, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	_, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, true, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.called {
		t.Error("vector search must not run against an empty index")
	}
	if !kw.queryCalled {
		t.Error("expected keyword path")
	}
}

func TestSearch_ExpiredDeadlineReturnsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	svc := New(&mockKeyword{}, &mockVector{}, nil, zap.NewNop())
	results, _, err := svc.Search(ctx, mustRequest(t, "tenant", filter.Filters{}, 10, false, 0.5))
	if !errors.Is(err, domain.ErrSearchTimeout) {
		t.Fatalf("got %v, want ErrSearchTimeout", err)
	}
	if results != nil {
		t.Error("no partial results on timeout")
	}
}

func TestSearch_KeywordErrorDegradesToEmpty(t *testing.T) {
	kw := &mockKeyword{queryErr: errors.New("backend trouble")}
	svc := New(kw, &mockVector{}, nil, zap.NewNop())

	results, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, false, 0.5))
	if err != nil {
		t.Fatalf("degraded search must not error, got %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Fatal("expected empty degraded result set")
	}
}

func TestSearch_StoreFallbackWhenKeywordUnavailable(t *testing.T) {
	kw := &mockKeyword{unavailable: true}
	docs := &mockDocSearcher{docs: []domain.Document{{
		ID:          "1",
		Title:       "Lease Agreement",
		Content:     "This lease agreement is between landlord and tenant.",
		Category:    "housing",
		CreatedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}}}
	svc := New(kw, &mockVector{}, nil, zap.NewNop()).WithStoreFallback(docs)

	results, total, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, false, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !docs.called {
		t.Fatal("expected the store fallback to run")
	}
	if kw.queryCalled {
		t.Error("keyword query must not run against an unavailable index")
	}
	if total != 1 || results[0].DocumentID() != "1" {
		t.Fatalf("got %+v", results)
	}
}

func TestSearch_StoreFallbackNotUsedWhenKeywordAvailable(t *testing.T) {
	kw := &mockKeyword{queryHits: []keyword.Hit{{Entry: entry("1", "housing")}}}
	docs := &mockDocSearcher{}
	svc := New(kw, &mockVector{}, nil, zap.NewNop()).WithStoreFallback(docs)

	_, _, err := svc.Search(context.Background(), mustRequest(t, "tenant", filter.Filters{}, 10, false, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs.called {
		t.Error("store fallback must not run while the keyword index is available")
	}
	if !kw.queryCalled {
		t.Error("expected keyword path")
	}
}

func TestSimilarities(t *testing.T) {
	hits := []vector.Hit{{Distance: 0}, {Distance: 2}, {Distance: 4}}
	sims := similarities(hits)
	want := []float64{1, 0.5, 0}
	for i := range want {
		if sims[i] != want[i] {
			t.Errorf("sims[%d] = %f, want %f", i, sims[i], want[i])
		}
	}

	if sims := similarities(nil); sims != nil {
		t.Error("empty batch should produce no scores")
	}

	for _, s := range similarities([]vector.Hit{{Distance: 0}, {Distance: 0}}) {
		if s != 1 {
			t.Errorf("all-zero batch similarity = %f, want 1", s)
		}
	}
}

func TestSuggest_ErrorDegradesToEmpty(t *testing.T) {
	svc := New(&mockKeyword{suggestions: []string{"Lease Agreement"}}, &mockVector{}, nil, zap.NewNop())
	got, err := svc.Suggest(context.Background(), "Lea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
}
