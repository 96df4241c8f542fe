package domain

import "time"

// Document is the unit of ingestion: a processed file with finalized content
// and category, handed to the retrieval engine for indexing. The engine copies
// the fields it needs and never mutates the source record.
type Document struct {
	ID          string
	Filename    string
	Title       string
	Content     string
	Category    string
	Tags        []string
	Confidence  float64
	CreatedDate time.Time
	UpdatedDate time.Time
}

// KeywordEntry is the record persisted in the keyword index, keyed by document
// ID. At most one entry exists per ID; writing an existing ID supersedes the
// previous entry.
type KeywordEntry struct {
	ID          string
	Title       string
	Content     string
	Category    string
	Tags        []string
	CreatedDate time.Time
	UpdatedDate time.Time
}

// Entry extracts the keyword index projection of a document.
func (d *Document) Entry() KeywordEntry {
	return KeywordEntry{
		ID:          d.ID,
		Title:       d.Title,
		Content:     d.Content,
		Category:    d.Category,
		Tags:        append([]string(nil), d.Tags...),
		CreatedDate: d.CreatedDate,
		UpdatedDate: d.UpdatedDate,
	}
}
