// Package extract turns one chunk of conversation text into lead records by
// prompting an LLM provider and validating what comes back.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/pkg/anthropic"
	"github.com/sells-group/leads-cli/pkg/gemini"
)

// ErrMissingCredentials is returned when the configured provider has no API key.
var ErrMissingCredentials = eris.New("extract: missing provider credentials")

// CompletionRequest is a provider-neutral single-turn completion request.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completion is the textual result of a provider call.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Provider is an LLM backend able to answer a CompletionRequest.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// NewProvider builds the provider selected by llm.provider, wrapped with the
// configured rate limit and circuit breaker.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if name == "" {
		name = "anthropic"
	}
	if cfg.ProviderKey() == "" {
		return nil, eris.Wrapf(ErrMissingCredentials, "extract: %s key is not set", name)
	}

	var p Provider
	switch name {
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key,
			anthropic.WithBaseURL(cfg.Anthropic.BaseURL),
			anthropic.WithMaxRetries(0),
		)
		p = NewAnthropicProvider(client, cfg.Anthropic.Model, cfg.Anthropic.CacheTTL)
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.Gemini.Key, BaseURL: cfg.Gemini.BaseURL})
		if err != nil {
			return nil, eris.Wrap(err, "extract: gemini client")
		}
		p = NewGeminiProvider(client, cfg.Gemini.Model)
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.LLM.Provider)
	}

	p = RateLimited(p, cfg.LLM.RateLimitRPS)
	if cfg.LLM.BreakerThreshold > 0 {
		p = Guarded(p, resilience.New(resilience.Config{
			Threshold:    cfg.LLM.BreakerThreshold,
			ResetTimeout: cfg.LLM.BreakerReset,
			Name:         name,
		}))
	}
	return p, nil
}

// FromConfig builds the configured provider and an Extractor over it.
func FromConfig(ctx context.Context, cfg *config.Config) (*Extractor, error) {
	p, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ForProvider(p, cfg), nil
}

// ForProvider builds an Extractor over p with the extraction settings of cfg.
func ForProvider(p Provider, cfg *config.Config) *Extractor {
	return New(p,
		WithRequirePhoneNumber(cfg.Extract.RequirePhoneNumber),
		WithTemperature(cfg.LLM.Temperature),
		WithMaxOutputTokens(cfg.LLM.MaxOutputTokens),
	)
}
