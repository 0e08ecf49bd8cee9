// Package retry 提供统一的有界重试策略，供模型调用与网关连接复用。
package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes a bounded retry loop: how many attempts, how long to
// sleep between them, and which errors are worth another try.
type Policy struct {
	// MaxAttempts 为总尝试次数（含首次），最小为 1。
	MaxAttempts int
	// Base is the first backoff interval.
	Base time.Duration
	// Factor multiplies the backoff each attempt (Base * Factor^attempt).
	Factor float64
	// Retryable reports whether the error is transient. nil means retry all.
	Retryable func(error) bool
	// Sleep is overridable in tests; defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backoff(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	f := p.Factor
	if f < 1 {
		f = 1
	}
	return time.Duration(float64(p.Base) * math.Pow(f, float64(attempt)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn up to MaxAttempts times, sleeping Base*Factor^attempt between
// tries. Non-retryable errors abort immediately; the last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var last error
	for attempt := 0; attempt < p.attempts(); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.backoff(attempt-1)); err != nil {
				return err
			}
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
	}
	return last
}
