package models

import "time"

// Document holds per-document metadata for a stored knowledge base entry.
type Document struct {
	Filename    string    `json:"filename"`
	ByteSize    int64     `json:"byte_size"`
	ExtractedAt time.Time `json:"extracted_at"`
	ChunkCount  int       `json:"chunk_count"`
	TextLength  int       `json:"text_length"`
	// Method records which extraction strategy produced the text.
	Method string `json:"method,omitempty"`
}

// Chunk represents a bounded segment of a document's extracted text,
// the unit of embedding and retrieval.
type Chunk struct {
	ChunkID   string    `json:"chunk_id"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	// Processed is false when the embedding for this chunk could not be
	// computed. Unprocessed chunks are excluded from similarity search.
	Processed bool `json:"processed"`
	CharCount int  `json:"char_count"`
	WordCount int  `json:"word_count"`
}

// KnowledgeEntry is the persisted unit: one document plus its ordered
// chunks. An ingestion either stores a complete entry or nothing.
type KnowledgeEntry struct {
	Document    Document  `json:"document"`
	Chunks      []Chunk   `json:"chunks"`
	ProcessedAt time.Time `json:"processed_at"`
	// SourceText keeps the extracted text for debugging and re-chunking.
	SourceText string `json:"source_text,omitempty"`
}

// DocumentSummary is the listing view of a stored entry, without vectors.
type DocumentSummary struct {
	Filename    string    `json:"filename"`
	ChunkCount  int       `json:"chunk_count"`
	TextLength  int       `json:"text_length"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SearchResult pairs a chunk with its cosine similarity to a query vector.
// Results are ephemeral: built per query, never persisted.
type SearchResult struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkID    string  `json:"chunk_id"`
}

// Extraction method names recorded on stored documents.
const (
	ExtractionMethodStructured  = "structured"
	ExtractionMethodOperators   = "text-operators"
	ExtractionMethodPrintable   = "printable-scan"
	ExtractionMethodPlaceholder = "placeholder"
)
