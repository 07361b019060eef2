// Package ratelimit provides the token sources shared by all shard runners.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Local is an in-process token bucket. One instance is shared by every
// runner of a process.
type Local struct {
	lim *rate.Limiter
}

// NewLocal allows perMinute requests per minute with a burst of burst.
// A non-positive perMinute disables limiting.
func NewLocal(perMinute, burst int) *Local {
	if perMinute <= 0 {
		return &Local{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Local{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Local) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
