// Package filter holds structured metadata filters applied uniformly across
// the keyword and semantic search paths.
package filter

import (
	"time"

	"github.com/obig20/docorganizer/internal/domain"
)

// Filters is the set of structured constraints on a search. All active
// filters combine with logical AND: a hit must satisfy every one of them.
// The tags filter itself matches when the document shares at least one of
// the requested tags.
type Filters struct {
	Category  string
	Tags      []string
	StartDate time.Time
	EndDate   time.Time
}

// IsEmpty reports whether no filter is active.
func (f Filters) IsEmpty() bool {
	return f.Category == "" && len(f.Tags) == 0 && f.StartDate.IsZero() && f.EndDate.IsZero()
}

// Matches reports whether the entry satisfies every active filter.
func (f Filters) Matches(e domain.KeywordEntry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if len(f.Tags) > 0 && !anyTagOverlap(f.Tags, e.Tags) {
		return false
	}
	if !f.StartDate.IsZero() && e.CreatedDate.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && e.CreatedDate.After(f.EndDate) {
		return false
	}
	return true
}

func anyTagOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
