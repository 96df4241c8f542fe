// Package snippet builds display snippets and highlighted text for search
// results. All functions are pure and operate on raw document content.
package snippet

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the default snippet window size in characters.
const DefaultMaxLength = 200

const ellipsis = "..."

// minTermLength filters out short stop-word-like query terms.
const minTermLength = 2

// Build returns a snippet of at most maxLength characters. With an empty
// query it returns the head of the content, with a trailing ellipsis when
// truncated. Otherwise it centers the window on the earliest case-insensitive
// occurrence of any query term longer than two characters, adding ellipses at
// cut boundaries. When no term occurs, it falls back to the head snippet.
//
// maxLength counts characters, not bytes; window edges always land on rune
// boundaries, so multibyte content stays valid UTF-8.
func Build(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return head(content, maxLength)
	}

	lower := strings.ToLower(content)
	first := -1
	for _, term := range terms {
		if pos := strings.Index(lower, term); pos >= 0 && (first < 0 || pos < first) {
			first = pos
		}
	}
	if first < 0 {
		return head(content, maxLength)
	}

	// ToLower maps rune to rune, so rune offsets agree between lower and
	// content even when byte offsets do not.
	center := utf8.RuneCountInString(lower[:first])
	runes := []rune(content)

	start := center - maxLength/2
	if start < 0 {
		start = 0
	}
	end := center + maxLength/2
	if end > len(runes) {
		end = len(runes)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// Highlight wraps occurrences of query terms in <mark> tags. Both the exact
// term and its title-cased form are replaced. This is a display-only
// transform; snippet boundaries are computed before highlighting.
func Highlight(content, query string) string {
	if strings.TrimSpace(query) == "" {
		return content
	}

	seen := make(map[string]struct{})
	for _, term := range strings.Fields(query) {
		if len(term) <= minTermLength {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}

		content = strings.ReplaceAll(content, term, "<mark>"+term+"</mark>")

		titled := strings.ToUpper(term[:1]) + term[1:]
		if titled != term {
			content = strings.ReplaceAll(content, titled, "<mark>"+titled+"</mark>")
		}
	}
	return content
}

// queryTerms lowercases and deduplicates query terms longer than two characters.
func queryTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, term := range strings.Fields(query) {
		if len(term) <= minTermLength {
			continue
		}
		term = strings.ToLower(term)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

func head(content string, maxLength int) string {
	if utf8.RuneCountInString(content) <= maxLength {
		return content
	}
	return string([]rune(content)[:maxLength]) + ellipsis
}
