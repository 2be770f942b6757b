package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"solana-copytrade/internal/observability"
)

// ErrRateBudgetExhausted is returned when a caller's total wait for a rate
// slot exceeds the limiter's budget.
var ErrRateBudgetExhausted = errors.New("rate limit wait budget exhausted")

// Default limiter settings: 10 classification calls per rolling second,
// callers wait at most 30s for a slot.
const (
	DefaultRateLimit   = 10
	DefaultRateWindow  = time.Second
	DefaultRateMaxWait = 30 * time.Second
)

// SlidingLimiter enforces a strict rolling-window rate limit: no more than
// limit acquisitions within any window. Excess callers are delayed, not
// rejected, up to maxWait of total waiting.
//
// A token bucket would admit up to 2x the limit inside one window right
// after a refill, which is why this counts actual acquisition timestamps.
type SlidingLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	maxWait time.Duration
	times   []time.Time // acquisition timestamps, oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlidingLimiter creates a limiter admitting limit calls per window.
// maxWait bounds how long one caller may be delayed in total.
func NewSlidingLimiter(limit int, window, maxWait time.Duration) *SlidingLimiter {
	return &SlidingLimiter{
		limit:   limit,
		window:  window,
		maxWait: maxWait,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the caller may proceed. Returns
// ErrRateBudgetExhausted when the required delay would exceed maxWait, or
// the context error on cancellation.
func (l *SlidingLimiter) Wait(ctx context.Context) error {
	var waited time.Duration

	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.times) < l.limit {
			l.times = append(l.times, now)
			l.mu.Unlock()
			return nil
		}

		// Earliest acquisition leaves the window at times[0]+window
		delay := l.times[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if delay <= 0 {
			continue
		}
		if waited+delay > l.maxWait {
			return ErrRateBudgetExhausted
		}
		observability.DefaultMetrics.RateLimitWaits.Inc()
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
		waited += delay
	}
}

// prune drops acquisitions older than the window. Caller holds the lock.
func (l *SlidingLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.times = l.times[i:]
	}
}

// InWindow reports how many acquisitions are inside the rolling window at
// the given instant.
func (l *SlidingLimiter) InWindow(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	return len(l.times)
}
