package gmo

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a minimum interval between requests so we stay
// inside the exchange's per-second quotas (6/s for public reads, 1/s
// for private writes).
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRateLimiter(requestsPerSecond float64) *rateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &rateLimiter{
		interval: time.Duration(float64(time.Second) / requestsPerSecond),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the next request is allowed or ctx is done. The
// slot is claimed before sleeping so concurrent callers queue up
// rather than stampede.
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := r.now()
	next := r.last.Add(r.interval)
	if next.Before(now) {
		next = now
	}
	r.last = next
	r.mu.Unlock()

	if d := next.Sub(now); d > 0 {
		return r.sleep(ctx, d)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
