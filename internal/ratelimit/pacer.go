package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a fixed minimum delay between consecutive items in a job
// run. The external API enforces a global rate limit, so items are processed
// strictly sequentially with this gap between them. Burst 1 means the first
// call passes immediately; each later call blocks until the delay has
// elapsed since the previous one.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum gap. A non-positive delay
// disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next item may proceed, honoring ctx cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}
