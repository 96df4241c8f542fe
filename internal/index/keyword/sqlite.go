package keyword

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
	"github.com/obig20/docorganizer/internal/domain/search/filter"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    created_date INTEGER NOT NULL,
    updated_date INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_recency ON documents(updated_date DESC, created_date DESC);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title, content,
    content='documents',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
    INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;
`

// SQLite is the full keyword index backend: an FTS5 inverted index over title
// and content, with structured fields stored alongside for filtering.
type SQLite struct {
	db *sql.DB
}

var _ Index = (*SQLite)(nil)

// OpenSQLite opens (or creates) the index database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: serializes writes, and WAL keeps point-in-time
	// snapshots for readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
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

	return &SQLite{db: db}, nil
}

// Upsert replaces any existing entry with the same ID in a single atomic
// statement; the FTS triggers keep the inverted index in sync.
func (s *SQLite) Upsert(ctx context.Context, entry domain.KeywordEntry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if entry.Tags == nil {
		tags = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, category, tags, created_date, updated_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			tags = excluded.tags,
			created_date = excluded.created_date,
			updated_date = excluded.updated_date`,
		entry.ID, entry.Title, entry.Content, entry.Category, string(tags),
		entry.CreatedDate.Unix(), entry.UpdatedDate.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.ID, err)
	}
	return nil
}

// Query runs a full-text match over title and content, ANDed with every
// active structured filter. With empty text it applies filters only and
// orders by recency.
func (s *SQLite) Query(ctx context.Context, text string, f filter.Filters, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}

	match := matchExpr(text)

	var (
		sb   strings.Builder
		args []any
	)
	if match != "" {
		// Title hits weigh heavier than content hits. bm25() is
		// lower-is-better; negate so higher score means more relevant.
		sb.WriteString(`
			SELECT d.id, d.title, d.content, d.category, d.tags,
			       d.created_date, d.updated_date,
			       -bm25(documents_fts, 5.0, 1.0) AS score
			FROM documents_fts
			JOIN documents d ON d.rowid = documents_fts.rowid
			WHERE documents_fts MATCH ?`)
		args = append(args, match)
	} else {
		sb.WriteString(`
			SELECT d.id, d.title, d.content, d.category, d.tags,
			       d.created_date, d.updated_date,
			       0 AS score
			FROM documents d
			WHERE 1=1`)
	}

	args = appendFilterClauses(&sb, args, f)

	if match != "" {
		sb.WriteString(" ORDER BY score DESC")
	} else {
		sb.WriteString(" ORDER BY d.updated_date DESC, d.created_date DESC")
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)

	return s.queryHits(ctx, sb.String(), args...)
}

// Recent returns entries by updated date descending, created date breaking ties.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryHits(ctx, `
		SELECT d.id, d.title, d.content, d.category, d.tags,
		       d.created_date, d.updated_date, 0 AS score
		FROM documents d
		ORDER BY d.updated_date DESC, d.created_date DESC
		LIMIT ?`, limit)
}

// Get fetches a single entry by document ID.
func (s *SQLite) Get(ctx context.Context, id string) (domain.KeywordEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, category, tags, created_date, updated_date
		FROM documents WHERE id = ?`, id)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KeywordEntry{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.KeywordEntry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entry, nil
}

// Delete removes an entry. Missing IDs are a no-op.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// Suggest returns distinct titles with the given prefix.
func (s *SQLite) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT title FROM documents
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY title LIMIT ?`,
		escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// IDs returns every indexed document ID. It feeds reindex reconciliation
// against the document store.
func (s *SQLite) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of indexed entries.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Available reports the capability negotiated at construction.
func (*SQLite) Available() bool { return true }

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryHits(ctx context.Context, query string, args ...any) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var score float64
		entry, err := scanEntry(func(dest ...any) error {
			return rows.Scan(append(dest, &score)...)
		})
		if err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, Hit{Entry: entry, Score: score})
	}
	return hits, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (domain.KeywordEntry, error) {
	var (
		entry            domain.KeywordEntry
		tags             string
		created, updated int64
	)
	err := scan(&entry.ID, &entry.Title, &entry.Content, &entry.Category, &tags, &created, &updated)
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return domain.KeywordEntry{}, fmt.Errorf("decode tags: %w", err)
	}
	entry.CreatedDate = time.Unix(created, 0).UTC()
	entry.UpdatedDate = time.Unix(updated, 0).UTC()
	return entry, nil
}

// appendFilterClauses ANDs every active filter into the WHERE clause. The
// tags filter matches when the document shares at least one requested tag.
func appendFilterClauses(sb *strings.Builder, args []any, f filter.Filters) []any {
	if f.Category != "" {
		sb.WriteString(" AND d.category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		sb.WriteString(" AND EXISTS (SELECT 1 FROM json_each(d.tags) WHERE json_each.value IN (")
		for i, tag := range f.Tags {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, tag)
		}
		sb.WriteString("))")
	}
	if !f.StartDate.IsZero() {
		sb.WriteString(" AND d.created_date >= ?")
		args = append(args, f.StartDate.Unix())
	}
	if !f.EndDate.IsZero() {
		sb.WriteString(" AND d.created_date <= ?")
		args = append(args, f.EndDate.Unix())
	}
	return args
}

// matchExpr builds an FTS5 query from free text: each term is quoted so user
// input never hits the FTS syntax, and terms are ORed so relevance grows with
// term overlap instead of requiring every term.
func matchExpr(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, term := range fields {
		term = strings.ReplaceAll(term, `"`, `""`)
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
