// Package ratelimiter throttles storage probes using the token bucket
// algorithm from golang.org/x/time/rate.
//
// The permission verifier fans access checks out over a worker pool; against
// shared storage backends an unthrottled burst of stat calls can trip API
// quotas (S3) or saturate a NAS. A limiter caps the sustained probe rate
// while still allowing short bursts.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// ProbeLimiter bounds the rate of filesystem probes.
//
// All methods are safe for concurrent use.
type ProbeLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing probesPerSecond sustained with the given
// burst capacity. A zero probesPerSecond disables limiting.
func New(probesPerSecond, burst uint) *ProbeLimiter {
	if probesPerSecond == 0 {
		return &ProbeLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = probesPerSecond
	}
	return &ProbeLimiter{
		limiter: rate.NewLimiter(rate.Limit(probesPerSecond), int(burst)),
	}
}

// Allow reports whether one probe may proceed right now, consuming a token
// if so.
func (r *ProbeLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *ProbeLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
