package parser

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// RateLimited wraps a parser so calls share one token bucket across workers.
type RateLimited struct {
	next    core.Parser
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with a burst of one.
// A non-positive rps disables throttling.
func NewRateLimited(next core.Parser, rps float64) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Parse waits for a token, then delegates.
func (r *RateLimited) Parse(ctx context.Context, req core.ParseRequest) (*core.ParseResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, "rate limiter", fmt.Errorf("wait for token: %w", err))
	}
	return r.next.Parse(ctx, req)
}

// Config selects and configures a provider.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	MaxTokens         int
	RequestsPerSecond float64
}

// New builds the configured provider wrapped in a rate limiter.
func New(cfg Config) (core.Parser, error) {
	var p core.Parser
	switch cfg.Provider {
	case "", ProviderOpenAI:
		p = NewOpenAIParser(cfg.APIKey, WithOpenAIModel(cfg.Model), WithOpenAIMaxTokens(cfg.MaxTokens))
	case ProviderAnthropic:
		p = NewAnthropicParser(cfg.APIKey, WithAnthropicModel(cfg.Model), WithAnthropicMaxTokens(cfg.MaxTokens))
	default:
		return nil, fmt.Errorf("parser: unknown provider %q", cfg.Provider)
	}
	return NewRateLimited(p, cfg.RequestsPerSecond), nil
}
