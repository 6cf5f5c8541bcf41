package extract

import (
	"context"
	"sync"

	"github.com/sells-group/leads-cli/internal/config"
)

// SharedProvider builds the configured provider on first use and returns the
// same instance afterwards, so its rate limit and circuit breaker cover every
// run in the process. A failed build is not kept; the next call tries again.
type SharedProvider struct {
	cfg   *config.Config
	build func(context.Context, *config.Config) (Provider, error)

	mu       sync.Mutex
	provider Provider
}

// NewSharedProvider creates a SharedProvider for cfg.
func NewSharedProvider(cfg *config.Config) *SharedProvider {
	return &SharedProvider{cfg: cfg, build: NewProvider}
}

// Provider returns the shared provider, building it if needed.
func (s *SharedProvider) Provider(ctx context.Context) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}
	p, err := s.build(context.WithoutCancel(ctx), s.cfg)
	if err != nil {
		return nil, err
	}
	s.provider = p
	return p, nil
}

// Extractor returns a new Extractor over the shared provider.
func (s *SharedProvider) Extractor(ctx context.Context) (*Extractor, error) {
	p, err := s.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return ForProvider(p, s.cfg), nil
}
