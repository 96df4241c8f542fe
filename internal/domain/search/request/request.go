// Package request defines the validated search request value object.
package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/obig20/docorganizer/internal/domain/search/filter"
)

// Search parameter limits.
const (
	MaxQueryLength  = 2048
	DefaultLimit    = 10
	MaxLimit        = 100
	DefaultMinScore = 0.5
)

// Request is a validated search query.
type Request struct {
	query               string
	filters             filter.Filters
	limit               int
	useSemantic         bool
	similarityThreshold float64
}

// New validates and normalizes search parameters.
// Defaults: limit=10 (clamped to 100), similarity_threshold=0.5 when negative.
func New(
	query string,
	filters filter.Filters,
	limit int,
	useSemantic bool,
	similarityThreshold float64,
) (Request, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if math.IsNaN(similarityThreshold) {
		return Request{}, fmt.Errorf("similarity_threshold must be a number between 0 and 1")
	}
	if similarityThreshold < 0 {
		similarityThreshold = DefaultMinScore
	}
	if similarityThreshold > 1 {
		return Request{}, fmt.Errorf("similarity_threshold must be between 0 and 1")
	}

	return Request{
		query:               query,
		filters:             filters,
		limit:               limit,
		useSemantic:         useSemantic,
		similarityThreshold: similarityThreshold,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// HasQuery reports whether query text was supplied.
func (r *Request) HasQuery() bool { return r.query != "" }

// Filters returns the structured metadata filters.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// UseSemantic reports whether the caller allows the semantic path.
func (r *Request) UseSemantic() bool { return r.useSemantic }

// SimilarityThreshold returns the minimum batch-relative similarity for a
// semantic hit to be retained.
func (r *Request) SimilarityThreshold() float64 { return r.similarityThreshold }
