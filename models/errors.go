package models

import "errors"

// Typed failures surfaced by the ingestion and query pipelines. Handlers map
// these to HTTP status codes; everything else is absorbed or logged inline.
var (
	// ErrDocumentNotFound is returned when a query names a filename with no
	// stored knowledge base entry.
	ErrDocumentNotFound = errors.New("document not found in knowledge base")

	// ErrChunkingFailed is returned when extraction produced text that
	// yields zero chunks. Ingestion aborts; nothing is stored.
	ErrChunkingFailed = errors.New("chunking produced no chunks")

	// ErrEmbeddingUnavailable is returned when the embedding provider is
	// unreachable at the batch level (as opposed to isolated per-chunk
	// failures, which are recorded on the chunk and tolerated).
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrGenerationFailed is returned by the generation client when the
	// model call fails. The orchestrator falls back to returning the raw
	// retrieved context rather than failing the request.
	ErrGenerationFailed = errors.New("answer generation failed")
)
