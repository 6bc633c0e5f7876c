package ratelimit

import "context"

// RateLimiter controls admission per named resource key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
