package gmo

import (
	"context"
	"time"
)

// RetryPolicy controls how failed requests are reattempted. Sleep is
// injectable so tests can record delays instead of waiting them out.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       sleepCtx,
	}
}

// exponentialDelay doubles per retry: base, 2*base, 4*base, ...
func (p RetryPolicy) exponentialDelay(attempt int) time.Duration {
	return p.BaseDelay << uint(attempt-1)
}

// linearDelay grows by one base per retry: base, 2*base, 3*base, ...
func (p RetryPolicy) linearDelay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Do runs fn until it succeeds, fails permanently, or MaxAttempts is
// exhausted. Rate-limit rejections back off exponentially; transient
// failures back off linearly. Every failed retryable attempt backs
// off, the last included, so a rate-limited peer gets its full quiet
// period before the caller reacts to the surfaced error. The last
// error is returned unwrapped so callers keep its type.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		var d time.Duration
		if IsRateLimit(err) {
			d = p.exponentialDelay(attempt)
		} else {
			d = p.linearDelay(attempt)
		}
		if serr := p.Sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}
