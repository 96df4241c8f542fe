// Package document implements the ingestion pipeline: extract text from an
// uploaded file, classify it, persist the record and index it for search.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/classify"
	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/extract"
)

// Service handles document lifecycle operations.
type Service struct {
	store     Store
	indexer   Indexer
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a document service. uploadDir may be empty, in which case raw
// files are not retained.
func New(store Store, indexer Indexer, uploadDir string, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		indexer:   indexer,
		uploadDir: uploadDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest runs the full pipeline for an uploaded file. The stored record is
// the source of truth; index writes are best effort and a failure there
// leaves a stored but unsearchable document that the next reindex repairs.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (domain.Document, error) {
	extracted, err := extract.Extract(data, filename)
	if err != nil {
		return domain.Document{}, fmt.Errorf("extract %s: %w", filename, err)
	}

	category, confidence := classify.Classify(extracted.Text)

	now := s.now().UTC()
	doc := domain.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		Title:       titleFor(extracted, filename),
		Content:     extracted.Text,
		Category:    category,
		Confidence:  confidence,
		CreatedDate: now,
		UpdatedDate: now,
	}

	if s.uploadDir != "" {
		if err := s.keepOriginal(doc.ID, filename, data); err != nil {
			s.logger.Warn("failed to retain original file",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.store.Save(ctx, doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}

	if err := s.indexer.IndexDocument(ctx, doc); err != nil {
		s.logger.Warn("document stored but not indexed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.String("category", category),
		zap.Float64("confidence", confidence),
	)
	return doc, nil
}

// Get returns a stored document by ID.
func (s *Service) Get(ctx context.Context, id string) (domain.Document, error) {
	return s.store.Get(ctx, id)
}

// List returns documents newest first, optionally restricted to a category.
func (s *Service) List(ctx context.Context, category string, limit int) ([]domain.Document, error) {
	return s.store.List(ctx, category, limit)
}

// Update overrides the category and tags of a stored document and reindexes
// it. A manual category assignment gets full confidence.
func (s *Service) Update(ctx context.Context, id, category string, tags []string) (domain.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}

	if category != "" {
		doc.Category = category
		doc.Confidence = 1
	}
	if tags != nil {
		doc.Tags = tags
	}
	doc.UpdatedDate = s.now().UTC()

	if err := s.store.Save(ctx, doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	if err := s.indexer.IndexDocument(ctx, doc); err != nil {
		s.logger.Warn("document updated but not reindexed",
			zap.String("document_id", id),
			zap.Error(err),
		)
	}
	return doc, nil
}

// Delete removes a document from the store, the indices and the upload dir.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.indexer.RemoveDocument(ctx, id); err != nil {
		s.logger.Warn("document deleted but still indexed",
			zap.String("document_id", id),
			zap.Error(err),
		)
	}

	if s.uploadDir != "" {
		_ = os.Remove(s.originalPath(id, doc.Filename))
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) keepOriginal(id, filename string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.originalPath(id, filename), data, 0o644)
}

func (s *Service) originalPath(id, filename string) string {
	return filepath.Join(s.uploadDir, id+"_"+filepath.Base(filename))
}

func titleFor(extracted extract.Result, filename string) string {
	if extracted.Title != "" {
		return extracted.Title
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
