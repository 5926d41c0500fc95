package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"avatar-chat-backend/internal/ai"
	"avatar-chat-backend/internal/config"
	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/internal/telemetry"
	"avatar-chat-backend/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTopK = 3

	// noAnswerText is returned without calling the generation model when
	// retrieval produced no candidates.
	noAnswerText = "I couldn't find relevant information in the document to answer your question."
)

// RAGService composes extraction, chunking, embedding, storage, retrieval
// and generation. Dependencies are injected so tests swap in deterministic
// fakes for the provider-backed pieces.
type RAGService struct {
	cfg       *config.Config
	extractor *TextExtractor
	chunker   *Chunker
	embedder  ai.Embedder
	generator ai.Generator
	store     *KnowledgeStore
	avatar    *AvatarClient
	metrics   *telemetry.Metrics

	// degraded marks embeddings as placeholders; chunks ingested in this
	// mode are stored but excluded from search.
	degraded bool
}

func NewRAGService(
	cfg *config.Config,
	extractor *TextExtractor,
	chunker *Chunker,
	embedder ai.Embedder,
	generator ai.Generator,
	store *KnowledgeStore,
	avatar *AvatarClient,
	metrics *telemetry.Metrics,
	degraded bool,
) *RAGService {
	return &RAGService{
		cfg:       cfg,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		store:     store,
		avatar:    avatar,
		metrics:   metrics,
		degraded:  degraded,
	}
}

// Ingest runs the full pipeline for one uploaded document: extract text,
// chunk it, embed the chunks, store the entry. The operation is atomic:
// any hard failure (zero chunks, provider unavailable, cancellation) leaves
// the store untouched. Re-ingesting an existing filename overwrites it.
func (s *RAGService) Ingest(ctx context.Context, filename string, content []byte) (*models.IngestResult, error) {
	start := time.Now()

	extraction := s.extractor.Extract(content)
	logger.Info("text extracted",
		"filename", filename,
		"method", extraction.Method,
		"chars", extraction.CharacterCount,
		"pages", extraction.Pages)

	chunks := s.chunker.ChunkSentences(extraction.Text)
	if len(chunks) == 0 {
		s.recordIngestion(start, 0, "error")
		return nil, models.ErrChunkingFailed
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		s.recordIngestion(start, 0, "error")
		return nil, err
	}

	entry := &models.KnowledgeEntry{
		Document: models.Document{
			Filename:    filename,
			ByteSize:    int64(len(content)),
			ExtractedAt: time.Now(),
			ChunkCount:  len(chunks),
			TextLength:  extraction.CharacterCount,
			Method:      extraction.Method,
		},
		Chunks:      chunks,
		ProcessedAt: time.Now(),
		SourceText:  extraction.Text,
	}
	s.store.Put(filename, entry)

	logger.Info("document ingested",
		"filename", filename,
		"chunks", len(chunks),
		"degraded", s.degraded,
		"duration_ms", time.Since(start).Milliseconds())
	s.recordIngestion(start, len(chunks), "success")

	return &models.IngestResult{
		Filename:    filename,
		ChunksCount: len(chunks),
		TextLength:  extraction.CharacterCount,
	}, nil
}

// embedChunks fans out embedding calls over a bounded worker group. A
// provider-unavailable error or context cancellation aborts the whole
// batch; any other per-chunk failure is recorded on the chunk and
// tolerated.
func (s *RAGService) embedChunks(ctx context.Context, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)

	for i := range chunks {
		g.Go(func() error {
			vector, err := s.embedder.EmbedText(gctx, chunks[i].Text)
			if err != nil {
				if errors.Is(err, models.ErrEmbeddingUnavailable) || gctx.Err() != nil {
					return err
				}
				logger.Warn("chunk embedding failed",
					"chunk_index", chunks[i].Index, "error", err)
				chunks[i].Processed = false
				return nil
			}
			chunks[i].Embedding = vector
			chunks[i].Processed = !s.degraded
			return nil
		})
	}

	return g.Wait()
}

// Search ranks one document's chunks against a query.
func (s *RAGService) Search(ctx context.Context, filename, query string, limit int) ([]models.SearchResult, error) {
	entry, ok := s.store.Get(filename)
	if !ok {
		return nil, models.ErrDocumentNotFound
	}

	if limit <= 0 {
		limit = defaultTopK
	}

	queryVector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	return TopChunks(entry.Chunks, queryVector, limit), nil
}

// Ask answers a question about one stored document. Retrieval misses yield
// a canned answer without a generation call; generation failures fall back
// to returning the raw retrieved context.
func (s *RAGService) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	results, err := s.Search(ctx, req.Filename, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		s.recordQuestion(false)
		return &models.AskResponse{
			Answer:     noAnswerText,
			References: []models.SearchResult{},
			Confidence: 0,
		}, nil
	}

	contextChunks := make([]string, len(results))
	for i, r := range results {
		contextChunks[i] = r.Text
	}

	answer, err := s.generator.GenerateAnswer(ctx, req.Query, contextChunks)
	if err != nil {
		logger.Error("answer generation failed, returning raw context",
			"filename", req.Filename, "error", err)
		answer = strings.Join(contextChunks, "\n\n")
	}

	if req.Speak {
		go s.speak(req.SessionID, answer)
	}

	s.recordQuestion(true)
	return &models.AskResponse{
		Answer:     answer,
		References: results,
		Confidence: results[0].Similarity,
	}, nil
}

// speak forwards the answer to the avatar session service. Runs detached
// from the request: a failure here never affects the response.
func (s *RAGService) speak(sessionID, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.avatar.Speak(ctx, sessionID, answer); err != nil {
		logger.Error("failed to forward answer to avatar session", "error", err)
	}
}

func (s *RAGService) recordIngestion(start time.Time, chunks int, status string) {
	if s.metrics != nil {
		s.metrics.RecordIngestion(time.Since(start).Seconds(), int64(chunks), status)
	}
}

func (s *RAGService) recordQuestion(grounded bool) {
	if s.metrics != nil {
		s.metrics.RecordQuestion(grounded)
	}
}

// ListDocuments returns summaries of every stored document.
func (s *RAGService) ListDocuments() []models.DocumentSummary {
	return s.store.List()
}

// DeleteDocument removes a stored document from both store tiers.
func (s *RAGService) DeleteDocument(filename string) error {
	if !s.store.Delete(filename) {
		return models.ErrDocumentNotFound
	}
	return nil
}
