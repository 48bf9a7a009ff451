package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum gap between the starts of consecutive units of work.
type Pacer interface {
	Wait(ctx context.Context) error
}

type intervalPacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a token bucket of one that refills every interval. A non-positive interval
// never blocks.
func NewPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return intervalPacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return intervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p intervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
