package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/pkg/gemini"
)

// GeminiProvider completes requests with the Gemini generateContent API in
// JSON response mode.
type GeminiProvider struct {
	client gemini.Client
	model  string
}

// NewGeminiProvider wraps a gemini.Client.
func NewGeminiProvider(client gemini.Client, model string) *GeminiProvider {
	return &GeminiProvider{client: client, model: model}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	temp := float32(req.Temperature)
	resp, err := p.client.Generate(ctx, gemini.GenerateRequest{
		Model:           p.model,
		System:          req.System,
		Prompt:          req.Prompt,
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
		JSON:            true,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogUsage(p.model, "extract_chunk")

	switch resp.FinishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return nil, eris.Errorf("extract: gemini blocked the response (%s)", resp.FinishReason)
	}

	return &Completion{
		Text:         resp.Text,
		Model:        p.model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CandidateTokens),
	}, nil
}
