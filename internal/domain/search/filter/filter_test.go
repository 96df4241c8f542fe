package filter

import (
	"testing"
	"time"

	"github.com/obig20/docorganizer/internal/domain"
)

func entry() domain.KeywordEntry {
	return domain.KeywordEntry{
		ID:          "1",
		Title:       "Lease",
		Category:    "housing",
		Tags:        []string{"lease", "2024"},
		CreatedDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Filters{}).IsEmpty() {
		t.Error("zero value must be empty")
	}
	if (Filters{Category: "housing"}).IsEmpty() {
		t.Error("category filter must not be empty")
	}
	if (Filters{StartDate: time.Now()}).IsEmpty() {
		t.Error("date filter must not be empty")
	}
}

func TestMatches(t *testing.T) {
	e := entry()
	tests := []struct {
		name string
		f    Filters
		want bool
	}{
		{"empty matches everything", Filters{}, true},
		{"category match", Filters{Category: "housing"}, true},
		{"category mismatch", Filters{Category: "land_plans"}, false},
		{"tag overlap", Filters{Tags: []string{"2024", "unrelated"}}, true},
		{"no tag overlap", Filters{Tags: []string{"unrelated"}}, false},
		{"within date range", Filters{
			StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}, true},
		{"before start", Filters{StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"after end", Filters{EndDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"all filters must hold", Filters{Category: "housing", Tags: []string{"missing"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Matches(e); got != tt.want {
				t.Errorf("Matches() = %t, want %t", got, tt.want)
			}
		})
	}
}
