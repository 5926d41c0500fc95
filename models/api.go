package models

// IngestResult is returned after a successful document upload.
type IngestResult struct {
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
	TextLength  int    `json:"text_length"`
}

// SearchRequest asks for the chunks of one document most similar to a query.
type SearchRequest struct {
	Query    string `json:"query" binding:"required"`
	Filename string `json:"filename" binding:"required"`
	Limit    int    `json:"limit"`
}

// SearchResponse carries ranked chunks for a search request.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// AskRequest is a RAG question against one stored document.
type AskRequest struct {
	Filename  string `json:"filename" binding:"required"`
	Query     string `json:"query" binding:"required"`
	Speak     bool   `json:"speak"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// AskResponse is the generated answer with chunk provenance. Confidence is
// the similarity score of the top-ranked chunk, 0 when nothing matched.
type AskResponse struct {
	Answer     string         `json:"answer"`
	References []SearchResult `json:"references"`
	Confidence float64        `json:"confidence"`
}
