// Package store persists document records in a SQLite database. It is the
// system of record: the search indices are projections rebuilt from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/obig20/docorganizer/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    confidence REAL NOT NULL DEFAULT 0,
    created_date INTEGER NOT NULL,
    updated_date INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_date DESC);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
`

const docColumns = "id, filename, title, content, category, tags, confidence, created_date, updated_date"

// Store is a SQLite-backed document store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the document database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts a document, or replaces the stored record when the ID exists.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (`+docColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    filename = excluded.filename,
		    title = excluded.title,
		    content = excluded.content,
		    category = excluded.category,
		    tags = excluded.tags,
		    confidence = excluded.confidence,
		    updated_date = excluded.updated_date`,
		doc.ID, doc.Filename, doc.Title, doc.Content, doc.Category,
		string(tags), doc.Confidence, doc.CreatedDate.Unix(), doc.UpdatedDate.Unix())
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document with the given ID, or domain.ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+docColumns+" FROM documents WHERE id = ?", id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// List returns documents ordered by update recency, optionally restricted to
// a category. Limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, category string, limit int) ([]domain.Document, error) {
	query := "SELECT " + docColumns + " FROM documents"
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY updated_date DESC, created_date DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListAll returns every stored document. It feeds full reindex runs.
func (s *Store) ListAll(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+docColumns+" FROM documents ORDER BY created_date")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Search runs a case-insensitive substring match over title and content,
// ranked by update recency. It backs search when the keyword index is
// degraded; relevance ranking is out of its scope.
func (s *Store) Search(ctx context.Context, query, category string, limit int) ([]domain.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	q := "SELECT " + docColumns + ` FROM documents
		WHERE (title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if category != "" {
		q += " AND category = ?"
		args = append(args, category)
	}
	q += " ORDER BY updated_date DESC, created_date DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Delete removes a document. Deleting an absent ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func scanDocument(row scannable) (domain.Document, error) {
	var (
		doc     domain.Document
		tags    string
		created int64
		updated int64
	)
	err := row.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.Content,
		&doc.Category, &tags, &doc.Confidence, &created, &updated)
	if err != nil {
		return domain.Document{}, err
	}
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return domain.Document{}, fmt.Errorf("decode tags: %w", err)
	}
	doc.CreatedDate = time.Unix(created, 0).UTC()
	doc.UpdatedDate = time.Unix(updated, 0).UTC()
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
