// Package resilience keeps the engine working through flaky storage and an
// unreachable cache: bounded retries for transient database errors and a
// circuit breaker for optional dependencies.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff is an exponential retry schedule with jitter.
type Backoff struct {
	// Attempts is the total number of tries, the first included.
	Attempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// Jitter spreads each delay by ±Jitter of its value.
	Jitter float64
}

// DefaultBackoff is three tries starting at 100ms.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.25,
	}
}

// NewBackoff builds a schedule from config values. Non-positive values keep
// the defaults; a negative jitter disables jitter.
func NewBackoff(attempts, initialMs, maxMs int, multiplier, jitter float64) Backoff {
	b := DefaultBackoff()
	if attempts > 0 {
		b.Attempts = attempts
	}
	if initialMs > 0 {
		b.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		b.Max = time.Duration(maxMs) * time.Millisecond
	}
	if multiplier > 0 {
		b.Multiplier = multiplier
	}
	b.Jitter = math.Max(jitter, 0)
	return b
}

// Delay returns the wait before retry number n (0-based).
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(n))
	d = math.Min(d, float64(b.Max))
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

func (b Backoff) normalized() Backoff {
	def := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = def.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = def.Multiplier
	}
	return b
}

// Retry calls fn until it succeeds, fails with a non-transient error, runs
// out of attempts, or ctx ends. op names the operation in retry logs.
func Retry(ctx context.Context, b Backoff, op string, fn func(ctx context.Context) error) error {
	_, err := RetryVal(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryVal is Retry for functions that return a value.
func RetryVal[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.normalized()

	for n := 0; ; n++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if n+1 >= b.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return val, err
		}

		delay := b.Delay(n)
		zap.L().Warn("resilience: retrying transient failure",
			zap.String("operation", op),
			zap.Int("attempt", n+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return val, err
		case <-t.C:
		}
	}
}
