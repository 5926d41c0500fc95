package ai

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"avatar-chat-backend/internal/config"
	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Embedder turns text into fixed-dimensionality vectors. The orchestrator
// only depends on this interface, so tests inject deterministic fakes and a
// process without provider credentials runs on the degraded implementation.
type Embedder interface {
	// EmbedText returns a vector of Dimensions() values.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length every returned embedding has.
	Dimensions() int
}

// GeminiEmbedder calls the Google embeddings model behind a circuit breaker
// and a tier-derived rate limiter, mirroring how the generation client
// protects the same provider.
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	dimensions  int
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// NewGeminiEmbedder creates the provider-backed embedder. The caller owns
// the config; GEMINI_API_KEY must be set.
func NewGeminiEmbedder(cfg *config.Config) (*GeminiEmbedder, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burstFor(limits.RPM))

	return &GeminiEmbedder{
		client:      client,
		model:       cfg.GoogleEmbeddingsModel,
		dimensions:  cfg.VectorDimensions,
		timeout:     time.Duration(cfg.EmbedTimeout) * time.Second,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one provider round trip. A failure here is
// batch-terminal: callers decide per-chunk tolerance above this layer.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-embedder")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", e.model),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		model := e.client.EmbeddingModel(e.model)

		batch := model.NewBatch()
		for _, text := range texts {
			batch = batch.AddContent(genai.Text(text))
		}

		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
		}

		vectors := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding at index %d", i)
			}
			vectors[i] = emb.Values
		}
		return vectors, nil
	})

	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	return result.([][]float32), nil
}

// Close releases the underlying genai client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

// DegradedEmbedder is the placeholder implementation used when no provider
// key is configured. It returns non-semantic random vectors of the correct
// dimensionality so the ingestion path stays exercised; callers mark the
// resulting chunks unprocessed so they never participate in search.
type DegradedEmbedder struct {
	dimensions int
}

func NewDegradedEmbedder(dimensions int) *DegradedEmbedder {
	logger.Warn("embedding provider not configured, running in degraded mode",
		"dimensions", dimensions)
	return &DegradedEmbedder{dimensions: dimensions}
}

func (e *DegradedEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *DegradedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimensions)
	for i := range vector {
		vector[i] = rand.Float32() - 0.5
	}
	return vector, nil
}

func (e *DegradedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i], _ = e.EmbedText(ctx, texts[i])
	}
	return vectors, nil
}

func burstFor(rpm int) int {
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return burst
}
