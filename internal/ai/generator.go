package ai

import (
	"context"
	"fmt"
	"strings"
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

// Generator produces a grounded answer to a question given retrieved
// context chunks.
type Generator interface {
	GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error)
}

// RateLimits captures a provider tier's request budget.
type RateLimits struct {
	RPM int
	TPM int
	RPD int
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GeminiGenerator calls the Gemini generation model behind a circuit
// breaker and a tier-derived rate limiter.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGeminiGenerator(cfg *config.Config) (*GeminiGenerator, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiGeneration",
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

	return &GeminiGenerator{
		client:      client,
		model:       cfg.GeminiModel,
		timeout:     time.Duration(cfg.GenerateTimeout) * time.Second,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

// GenerateAnswer builds a grounded prompt from the context chunks and asks
// the model to answer only from that context.
func (g *GeminiGenerator) GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error) {
	tracer := otel.Tracer("gemini-generator")
	ctx, span := tracer.Start(ctx, "gemini.generate_answer")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.context_chunks", len(contextChunks)),
		attribute.String("gemini.model", g.model),
	)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.GenerativeModel(g.model)
		model.SetTemperature(0.7)
		model.SetMaxOutputTokens(2048)

		prompt := buildGroundedPrompt(question, contextChunks)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		answer := collectText(resp)
		if answer == "" {
			return nil, fmt.Errorf("model returned no text candidates")
		}
		return answer, nil
	})

	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(string), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// EchoGenerator stands in for the model when no provider key is
// configured. It returns the retrieved context verbatim, which keeps the
// query path usable for local development.
type EchoGenerator struct{}

func NewEchoGenerator() *EchoGenerator {
	logger.Warn("generation provider not configured, answers will echo retrieved context")
	return &EchoGenerator{}
}

func (g *EchoGenerator) GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error) {
	if len(contextChunks) == 0 {
		return "", models.ErrGenerationFailed
	}
	return strings.Join(contextChunks, "\n\n"), nil
}

// buildGroundedPrompt instructs the model to answer strictly from the
// retrieved chunks and to admit when they are insufficient.
func buildGroundedPrompt(question string, contextChunks []string) string {
	var sb strings.Builder
	sb.WriteString("You are answering questions about a document. Use ONLY the context below.\n")
	sb.WriteString("If the context does not contain the answer, say so explicitly instead of guessing.\n\n")

	for i, chunk := range contextChunks {
		sb.WriteString(fmt.Sprintf("Context %d:\n%s\n\n", i+1, chunk))
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
