package domain

import "errors"

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexUnavailable signals that an index backend was degraded to a no-op at startup.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrIndexCorrupted signals that persisted index state failed an integrity check on load.
	ErrIndexCorrupted = errors.New("index corrupted")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSearchTimeout signals that a search exceeded its caller-supplied deadline.
	ErrSearchTimeout = errors.New("search timed out")
	// ErrUnsupportedFormat signals a file format with no registered text extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
