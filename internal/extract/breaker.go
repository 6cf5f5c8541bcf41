package extract

import (
	"context"

	"github.com/sells-group/leads-cli/internal/resilience"
)

type guarded struct {
	inner   Provider
	breaker *resilience.Breaker
}

// Guarded routes calls to p through b. Once b opens, calls fail with
// resilience.ErrOpen without reaching the provider. A nil b returns p
// unchanged.
func Guarded(p Provider, b *resilience.Breaker) Provider {
	if b == nil {
		return p
	}
	return &guarded{inner: p, breaker: b}
}

func (g *guarded) Name() string { return g.inner.Name() }

func (g *guarded) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return resilience.Do(ctx, g.breaker, func(ctx context.Context) (*Completion, error) {
		return g.inner.Complete(ctx, req)
	})
}
