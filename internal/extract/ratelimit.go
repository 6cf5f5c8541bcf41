package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

type rateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// RateLimited throttles calls to p to rps requests per second. A non-positive
// rps returns p unchanged.
func RateLimited(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	return &rateLimited{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)),
	}
}

func (r *rateLimited) Name() string { return r.inner.Name() }

func (r *rateLimited) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limit")
	}
	return r.inner.Complete(ctx, req)
}
