package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/pkg/anthropic"
)

// AnthropicProvider completes requests with the Anthropic Messages API. The
// system instruction is sent as a cached block so every chunk after the first
// reads it from the prompt cache.
type AnthropicProvider struct {
	client   anthropic.Client
	model    string
	cacheTTL string
}

// NewAnthropicProvider wraps an anthropic.Client.
func NewAnthropicProvider(client anthropic.Client, model, cacheTTL string) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: model, cacheTTL: cacheTTL}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	temp := req.Temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   int64(req.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(req.System, p.cacheTTL),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(p.model, "extract_chunk")

	if resp.StopReason == "refusal" {
		return nil, eris.New("extract: anthropic refused the request")
	}

	return &Completion{
		Text:         resp.Text(),
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
