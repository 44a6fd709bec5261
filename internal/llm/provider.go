package llm

import (
	"context"

	"github.com/cryptobrief/refinery/internal/model"
)

// Provider is the narrow interface the pipeline sees. Both calls are
// non-deterministic black boxes; tests inject a deterministic stub.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Classify asks the model for a PASS/BLOCK verdict on a candidate.
	Classify(ctx context.Context, req ClassifyRequest) (*model.Evaluation, error)

	// Rewrite asks the model for the stylized headline/summary bundle.
	// A response missing required fields is an error, not a partial result.
	Rewrite(ctx context.Context, req RewriteRequest) (*model.RefinedStory, error)

	// IsAvailable checks if the provider is properly configured and accessible.
	IsAvailable(ctx context.Context) bool
}

// ClassifyRequest contains the input for the evaluation call.
type ClassifyRequest struct {
	Candidate model.Candidate
	Rubric    model.Rubric
	Format    model.ResponseFormat
}

// RewriteRequest contains the input for the rewrite call.
type RewriteRequest struct {
	Candidate model.Candidate

	// DefaultTicker replaces an empty or placeholder ticker list.
	DefaultTicker string
}

// Config holds LLM provider configuration.
type Config struct {
	// Provider name: "openai" or "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int
}

// ConfigFromModel converts the deployment profile's LLM section.
func ConfigFromModel(cfg model.LLMConfig) Config {
	return Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
	}
}

// Token budgets per call. Classification answers are short; the rewrite
// carries the full JSON bundle.
const (
	classifyMaxTokens = 250
	rewriteMaxTokens  = 500
)
