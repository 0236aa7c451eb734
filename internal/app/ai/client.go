// Package ai wraps the Gemini SDK behind a small client the planner can mock.
package ai

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/tripweave/tripweave/internal/observability/metrics"
	"github.com/tripweave/tripweave/internal/pkg/config"
)

// Client is the generation contract the planner depends on.
type Client interface {
	GenerateResponse(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	Model() string
}

var _ Client = (*GeminiClient)(nil)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

// GenerateResponse performs a unary generation call.
func (c *GeminiClient) GenerateResponse(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, span := otel.Tracer("GeminiClient").Start(ctx, "GenerateResponse", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	elapsed := time.Since(startTime)

	metrics.Get().LLMRequestsTotal.Add(ctx, 1)
	metrics.Get().LLMRequestDuration.Record(ctx, elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		c.logger.Error("LLM generation failed",
			zap.String("model", c.model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, fmt.Errorf("generate content: %w", err)
	}

	span.SetAttributes(attribute.Int64("llm.latency_ms", elapsed.Milliseconds()))
	span.SetStatus(codes.Ok, "Generation completed")
	return resp, nil
}

// GenerateContentStream starts a streaming generation call. Errors surface
// through the returned iterator, matching the SDK contract.
func (c *GeminiClient) GenerateContentStream(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	metrics.Get().LLMRequestsTotal.Add(ctx, 1)
	c.logger.Debug("Starting LLM stream",
		zap.String("model", c.model),
		zap.Int("prompt_length", len(prompt)))

	return c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), cfg)
}

// ResponseText extracts the first candidate text from a unary response.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			return candidate.Content.Parts[0].Text
		}
	}
	return ""
}
