package worker

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out sequential calls to the model endpoint. The pipeline is
// single-threaded, so a single limiter with burst 1 yields a fixed delay
// between items.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing one call per interval.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until the next call is allowed or the context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
