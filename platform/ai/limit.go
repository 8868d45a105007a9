package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Client with a token-bucket limiter so bulk jobs cannot
// exceed the provider's request quota. Waiting respects ctx cancellation.
type RateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited client allowing rps requests per
// second with the given burst.
func NewRateLimited(inner Client, rps float64, burst int) *RateLimited {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Complete implements Client.
func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, req)
}
