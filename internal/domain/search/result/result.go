// Package result defines the per-query search hit. Results are ephemeral:
// constructed per query, never persisted.
package result

import "time"

// Result is a single search hit. The score range is path-specific: the
// semantic path yields batch-relative similarities in [0,1], the keyword path
// yields BM25-derived relevance, and the recency path yields zero scores.
type Result struct {
	documentID  string
	score       float64
	title       string
	category    string
	createdDate time.Time
	snippet     string
	highlighted string
}

// New creates a search result.
func New(
	documentID string, score float64, title, category string,
	createdDate time.Time, snippet, highlighted string,
) Result {
	return Result{
		documentID:  documentID,
		score:       score,
		title:       title,
		category:    category,
		createdDate: createdDate,
		snippet:     snippet,
		highlighted: highlighted,
	}
}

// DocumentID returns the backing document identifier.
func (r *Result) DocumentID() string { return r.documentID }

// Score returns the relevance score.
func (r *Result) Score() float64 { return r.score }

// Title returns the document title.
func (r *Result) Title() string { return r.title }

// Category returns the document category.
func (r *Result) Category() string { return r.category }

// CreatedDate returns the document creation time.
func (r *Result) CreatedDate() time.Time { return r.createdDate }

// Snippet returns the display snippet.
func (r *Result) Snippet() string { return r.snippet }

// Highlighted returns the highlighted content, empty when not computed.
func (r *Result) Highlighted() string { return r.highlighted }
