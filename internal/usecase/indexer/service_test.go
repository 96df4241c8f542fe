package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/domain"
)

// --- Mocks ---

type mockKeyword struct {
	mu        sync.Mutex
	entries   map[string]domain.KeywordEntry
	upsertErr error
}

func newMockKeyword() *mockKeyword {
	return &mockKeyword{entries: make(map[string]domain.KeywordEntry)}
}

func (m *mockKeyword) Upsert(_ context.Context, e domain.KeywordEntry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *mockKeyword) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *mockKeyword) IDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockKeyword) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

type mockVector struct {
	mu         sync.Mutex
	rows       []string
	addErr     error
	persists   int
	persistErr error
}

func (m *mockVector) Add(id string, _ []float32) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, id)
	return nil
}

func (m *mockVector) Delete(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r == id {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n
}

func (m *mockVector) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	return m.persistErr
}

func (m *mockVector) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type mockEmbedder struct {
	err    error
	called bool
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockLister struct {
	docs []domain.Document
	err  error
}

func (m *mockLister) ListAll(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func doc(id, content string) domain.Document {
	return domain.Document{
		ID:          id,
		Title:       "Doc " + id,
		Content:     content,
		Category:    "housing",
		CreatedDate: time.Now().UTC(),
		UpdatedDate: time.Now().UTC(),
	}
}

// --- Tests ---

func TestIndexDocument_WritesBothIndices(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	svc := New(kw, vec, &mockEmbedder{}, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "lease agreement")); err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(kw.entries) != 1 {
		t.Error("keyword entry missing")
	}
	if vec.Count() != 1 {
		t.Error("vector row missing")
	}
	if vec.persists == 0 {
		t.Error("vector index must be persisted after a write")
	}
}

func TestIndexDocument_EmptyContentSkipsVector(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	emb := &mockEmbedder{}
	svc := New(kw, vec, emb, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "")); err != nil {
		t.Fatalf("index: %v", err)
	}
	if emb.called {
		t.Error("embedder must not run for empty content")
	}
	if vec.Count() != 0 {
		t.Error("vector row count must be unchanged")
	}
	if len(kw.entries) != 1 {
		t.Error("keyword index must still gain an entry")
	}
}

func TestIndexDocument_EmbeddingFailureIsNotFatal(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	svc := New(kw, vec, &mockEmbedder{err: errors.New("model down")}, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "content")); err != nil {
		t.Fatalf("embedding failure must not fail indexing: %v", err)
	}
	if len(kw.entries) != 1 || vec.Count() != 0 {
		t.Error("expected keyword-only state")
	}
}

func TestIndexDocument_VectorWriteFailureIsNotFatal(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{addErr: errors.New("disk full")}
	svc := New(kw, vec, &mockEmbedder{}, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "content")); err != nil {
		t.Fatalf("vector failure must not fail indexing: %v", err)
	}
	if len(kw.entries) != 1 {
		t.Error("keyword entry missing")
	}
}

func TestIndexDocument_KeywordFailureIsFatal(t *testing.T) {
	kw := newMockKeyword()
	kw.upsertErr = errors.New("locked")
	svc := New(kw, &mockVector{}, &mockEmbedder{}, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "content")); err == nil {
		t.Fatal("keyword upsert failure must propagate")
	}
}

func TestIndexDocument_NoEmbedderIsKeywordOnly(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	svc := New(kw, vec, nil, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "content")); err != nil {
		t.Fatalf("index: %v", err)
	}
	if vec.Count() != 0 {
		t.Error("no vector rows expected without an embedder")
	}
}

func TestRemoveDocument(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	svc := New(kw, vec, &mockEmbedder{}, nil, zap.NewNop())

	if err := svc.IndexDocument(context.Background(), doc("1", "content")); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := svc.RemoveDocument(context.Background(), "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(kw.entries) != 0 || vec.Count() != 0 {
		t.Error("document not removed from both indices")
	}
}

func TestReindex(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	lister := &mockLister{docs: []domain.Document{
		doc("1", "first"),
		doc("2", "second"),
		doc("3", ""),
	}}
	svc := New(kw, vec, &mockEmbedder{}, lister, zap.NewNop()).WithWorkers(2)

	n, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d documents, want 3", n)
	}
	if len(kw.entries) != 3 {
		t.Errorf("got %d keyword entries, want 3", len(kw.entries))
	}
	if vec.Count() != 2 {
		t.Errorf("got %d vector rows, want 2 (empty content skipped)", vec.Count())
	}
}

func TestReindex_PrunesStaleEntries(t *testing.T) {
	kw := newMockKeyword()
	vec := &mockVector{}
	svc := New(kw, vec, &mockEmbedder{}, &mockLister{docs: []domain.Document{
		doc("keep", "content"),
	}}, zap.NewNop())

	// Index a document, then delete it from the store behind the indexer's
	// back. The next reindex must remove it from both indices.
	if err := svc.IndexDocument(context.Background(), doc("gone", "content")); err != nil {
		t.Fatalf("index: %v", err)
	}

	n, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d documents, want 1", n)
	}
	if _, ok := kw.entries["gone"]; ok {
		t.Error("stale keyword entry survived reindex")
	}
	if _, ok := kw.entries["keep"]; !ok {
		t.Error("stored document missing from keyword index after reindex")
	}
	if vec.Count() != 1 {
		t.Errorf("got %d vector rows, want 1 (stale row pruned)", vec.Count())
	}
}

func TestReindex_NoStore(t *testing.T) {
	svc := New(newMockKeyword(), &mockVector{}, nil, nil, zap.NewNop())
	if _, err := svc.Reindex(context.Background()); err == nil {
		t.Fatal("expected error without a document store")
	}
}
