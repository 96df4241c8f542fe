// Package chi exposes the HTTP API: document ingestion and retrieval on top
// of the search and document services.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/domain/search/filter"
	"github.com/obig20/docorganizer/internal/domain/search/request"
	"github.com/obig20/docorganizer/internal/domain/search/result"
	documentuc "github.com/obig20/docorganizer/internal/usecase/document"
	indexeruc "github.com/obig20/docorganizer/internal/usecase/indexer"
	searchuc "github.com/obig20/docorganizer/internal/usecase/search"
	"github.com/obig20/docorganizer/internal/version"
)

// maxUploadBytes bounds a single file upload.
const maxUploadBytes = 32 << 20

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeDocumentNotFound  = "document_not_found"
	codeUnsupportedFormat = "unsupported_format"
	codeSearchTimeout     = "search_timeout"
	codeEmbeddingProvider = "embedding_provider_error"
	codeIndexCorrupted    = "index_corrupted"
	codeInternalError     = "internal_error"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the HTTP routes to the use case services.
type Server struct {
	documents     *documentuc.Service
	search        *searchuc.Service
	indexer       *indexeruc.Service
	queryTimeout  time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	search *searchuc.Service,
	indexer *indexeruc.Service,
	queryTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents:    documents,
		search:       search,
		indexer:      indexer,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrSearchTimeout, http.StatusGatewayTimeout, codeSearchTimeout),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrIndexCorrupted, http.StatusInternalServerError, codeIndexCorrupted),
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.SearchDocuments)
		r.Get("/search/recent", s.RecentDocuments)
		r.Get("/search/suggestions", s.Suggestions)

		r.Post("/documents/upload", s.UploadDocument)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Patch("/documents/{id}", s.UpdateDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)

		r.Post("/reindex", s.Reindex)
		r.Get("/stats", s.Stats)
	})
}

// searchRequest is the POST /api/search body.
type searchRequest struct {
	Query               string     `json:"query"`
	Category            string     `json:"category,omitempty"`
	Tags                []string   `json:"tags,omitempty"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	Limit               int        `json:"limit,omitempty"`
	UseSemantic         *bool      `json:"use_semantic,omitempty"`
	SimilarityThreshold *float64   `json:"similarity_threshold,omitempty"`
}

type searchResultItem struct {
	DocumentID  string    `json:"document_id"`
	Score       float64   `json:"relevance_score"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	CreatedDate time.Time `json:"created_date"`
	Snippet     string    `json:"snippet"`
	Highlighted string    `json:"highlighted,omitempty"`
}

type searchResponse struct {
	Results     []searchResultItem `json:"results"`
	TotalCount  int                `json:"total_count"`
	QueryTimeMs float64            `json:"query_time_ms"`
}

// SearchDocuments handles POST /api/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	useSemantic := true
	if req.UseSemantic != nil {
		useSemantic = *req.UseSemantic
	}
	threshold := -1.0
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	searchReq, err := request.New(req.Query, filtersFromRequest(req), req.Limit, useSemantic, threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	if s.queryTimeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	results, total, err := s.search.Search(ctx, &searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:     resultItems(results),
		TotalCount:  total,
		QueryTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	})
}

// RecentDocuments handles GET /api/search/recent.
func (s *Server) RecentDocuments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	results, err := s.search.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:    resultItems(results),
		TotalCount: len(results),
	})
}

// Suggestions handles GET /api/search/suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	partial := r.URL.Query().Get("q")

	suggestions, err := s.search.Suggest(r.Context(), partial)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

// documentResponse is the representation of a stored document.
type documentResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Confidence  float64   `json:"confidence_score"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

// UploadDocument handles POST /api/documents/upload (multipart form, field "file").
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, `Form field "file" is required`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	doc, err := s.documents.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, documentToResponse(doc))
}

// ListDocuments handles GET /api/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	limit := queryInt(r, "limit", 50)

	docs, err := s.documents.List(r.Context(), category, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i, d := range docs {
		items[i] = documentToResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": items,
		"total":     len(items),
	})
}

// GetDocument handles GET /api/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := struct {
		documentResponse
		Content string `json:"content"`
	}{documentToResponse(doc), doc.Content}
	writeJSON(w, http.StatusOK, resp)
}

// documentUpdateRequest is the PATCH /api/documents/{id} body.
type documentUpdateRequest struct {
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// UpdateDocument handles PATCH /api/documents/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := s.documents.Update(r.Context(), chi.URLParam(r, "id"), req.Category, req.Tags)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /api/reindex: rebuilds both indices from the store.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.indexer.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": indexed})
}

// Stats handles GET /api/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := s.documents.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_count": count,
		"version":        version.Version,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func filtersFromRequest(req searchRequest) filter.Filters {
	f := filter.Filters{
		Category: req.Category,
		Tags:     req.Tags,
	}
	if req.StartDate != nil {
		f.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		f.EndDate = *req.EndDate
	}
	return f
}

func resultItems(results []result.Result) []searchResultItem {
	items := make([]searchResultItem, len(results))
	for i := range results {
		r := &results[i]
		items[i] = searchResultItem{
			DocumentID:  r.DocumentID(),
			Score:       r.Score(),
			Title:       r.Title(),
			Category:    r.Category(),
			CreatedDate: r.CreatedDate(),
			Snippet:     r.Snippet(),
			Highlighted: r.Highlighted(),
		}
	}
	return items
}

func documentToResponse(doc domain.Document) documentResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		Title:       doc.Title,
		Category:    doc.Category,
		Tags:        tags,
		Confidence:  doc.Confidence,
		CreatedDate: doc.CreatedDate,
		UpdatedDate: doc.UpdatedDate,
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrUnsupportedFormat,
		domain.ErrSearchTimeout,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrIndexCorrupted,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
