package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
)

const (
	// DefaultTemperature keeps extraction close to deterministic.
	DefaultTemperature = 0.1
	// DefaultMaxOutputTokens caps the completion length of one chunk.
	DefaultMaxOutputTokens = 4000
)

// Extractor extracts leads from conversation chunks. It never fails outward:
// provider, parse and validation failures all degrade to fewer leads.
type Extractor struct {
	provider     Provider
	requirePhone bool
	temperature  float64
	maxTokens    int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRequirePhoneNumber switches the validity rule. When true a lead needs a
// phone number and a missing name becomes "Unknown"; when false a lead needs a
// name and a missing phone becomes "Not available".
func WithRequirePhoneNumber(require bool) Option {
	return func(e *Extractor) { e.requirePhone = require }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(e *Extractor) {
		if t >= 0 {
			e.temperature = t
		}
	}
}

// WithMaxOutputTokens sets the completion length cap.
func WithMaxOutputTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// New creates an Extractor backed by p.
func New(p Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider:    p,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxOutputTokens,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractLeadsFromChunk extracts the leads of one chunk. chunkIndex is
// zero-based. The result is never nil.
func (e *Extractor) ExtractLeadsFromChunk(ctx context.Context, text string, chunkIndex, totalChunks int) []model.Lead {
	log := zap.L().With(
		zap.String("provider", e.provider.Name()),
		zap.Int("chunk", chunkIndex+1),
		zap.Int("total_chunks", totalChunks),
	)

	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System:      systemInstruction,
		Prompt:      buildPrompt(text, chunkIndex, totalChunks),
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		log.Warn("extract: provider call failed", zap.Error(err))
		return []model.Lead{}
	}

	entries, err := decodeEntries(resp.Text)
	if err != nil {
		log.Warn("extract: unparseable response",
			zap.Error(err),
			zap.Int("response_len", len(resp.Text)),
		)
		return []model.Lead{}
	}

	leads := make([]model.Lead, 0, len(entries))
	var invalid, rejected int
	for _, entry := range entries {
		if err := validEntry(entry); err != nil {
			invalid++
			continue
		}
		lead, ok := e.normalize(entry.(map[string]any))
		if !ok {
			rejected++
			continue
		}
		leads = append(leads, lead)
	}

	log.Debug("extract: chunk done",
		zap.Int("entries", len(entries)),
		zap.Int("leads", len(leads)),
		zap.Int("invalid", invalid),
		zap.Int("rejected", rejected),
	)
	return leads
}

// normalize applies the validity rule and fills sentinels. It reports false
// when the entry must be discarded.
func (e *Extractor) normalize(m map[string]any) (model.Lead, bool) {
	lead := model.Lead{
		Name:        field(m["name"], " "),
		PhoneNumber: field(m["phone_number"], ", "),
		Destination: field(m["destination"], " - "),
		Status:      model.LeadStatusNew,
		Price:       field(m["price"], " + "),
		Services:    field(m["services"], ", "),
	}

	if e.requirePhone {
		if !lead.HasPhone() {
			return model.Lead{}, false
		}
		if lead.Name == "" {
			lead.Name = model.NamePlaceholder
		}
	} else {
		if !lead.HasName() {
			return model.Lead{}, false
		}
		if lead.PhoneNumber == "" {
			lead.PhoneNumber = model.PhoneNotAvailable
		}
	}

	if lead.Destination == "" {
		lead.Destination = model.DestinationUnspecified
	}
	if lead.Price == "" {
		lead.Price = model.PriceNotDiscussed
	}
	return lead, true
}
