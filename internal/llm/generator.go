// Package llm provides the text-generation capability used by the scoring
// agents and the tolerant JSON parsing applied to model output.
package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/resilience"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/anthropic"
)

// Request is one generation call.
type Request struct {
	Prompt string
	System string
	// Structured selects the low-temperature settings used when the caller
	// expects a JSON object back.
	Structured bool
	// Purpose labels the call in logs (e.g. "icp", "research").
	Purpose string
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const (
	structuredTemperature = 0.2
	freeformTemperature   = 0.5
)

// AnthropicGenerator implements Generator on the Anthropic messages API with
// bounded retries on transient failures.
type AnthropicGenerator struct {
	client              anthropic.Client
	model               string
	structuredMaxTokens int64
	freeformMaxTokens   int64
	retry               resilience.RetryConfig
}

// NewAnthropicGenerator builds a generator from config.
func NewAnthropicGenerator(client anthropic.Client, cfg config.AnthropicConfig, retry config.RetryConfig) *AnthropicGenerator {
	g := &AnthropicGenerator{
		client: client,
		model:  cfg.Model,
		retry:  resilience.Policy(retry.MaxAttempts, retry.InitialBackoffMs),
	}
	if g.model == "" {
		g.model = config.DefaultModel
	}
	g.structuredMaxTokens = cfg.StructuredMaxTokens
	if g.structuredMaxTokens <= 0 {
		g.structuredMaxTokens = 1500
	}
	g.freeformMaxTokens = cfg.FreeformMaxTokens
	if g.freeformMaxTokens <= 0 {
		g.freeformMaxTokens = 2000
	}
	g.retry.ShouldRetry = isRetryable
	g.retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return g
}

// Generate sends the prompt and returns the concatenated text blocks.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	temp := freeformTemperature
	maxTokens := g.freeformMaxTokens
	if req.Structured {
		temp = structuredTemperature
		maxTokens = g.structuredMaxTokens
	}

	msg := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, msg)
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: generate")
	}

	resp.Usage.LogUsage(g.model, req.Purpose)
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		zap.L().Warn("llm: empty response", zap.String("purpose", req.Purpose), zap.String("stop_reason", resp.StopReason))
	}
	return text, nil
}

func isRetryable(err error) bool {
	if code := anthropic.StatusCode(err); code != 0 {
		return resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsTransient(err)
}
