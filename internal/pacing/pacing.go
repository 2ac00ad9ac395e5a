// Package pacing spaces out calls to a rate-limited provider.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits one call immediately and then one per interval.
type Limiter struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// New returns a limiter with a burst of one. An interval <= 0 disables pacing.
func New(interval time.Duration) *Limiter {
	l := &Limiter{interval: interval}
	if interval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
