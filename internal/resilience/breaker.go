package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrBreakerOpen is returned without calling the dependency while the
// breaker is open.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// BreakerOptions configures a Breaker.
type BreakerOptions struct {
	// Threshold is the run of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before one probe call.
	Cooldown time.Duration
	// OnChange observes state transitions. It runs with the breaker locked.
	OnChange func(from, to BreakerState)
}

// Breaker skips a failing dependency for a cooldown period. One successful
// probe closes it; a failed probe reopens it.
type Breaker struct {
	opts BreakerOptions
	now  func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openUntil time.Time
}

// NewBreaker creates a closed breaker. Zero options default to five failures
// and a 30s cooldown.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	return &Breaker{opts: opts, now: time.Now}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through b and returns its value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if !b.admit() {
		var zero T
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.report(err == nil)
	return val, err
}

// State returns the current state. An open breaker whose cooldown has passed
// reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && !b.now().Before(b.openUntil) {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Before(b.openUntil) {
			return false
		}
		b.set(BreakerHalfOpen)
	}
	return true
}

func (b *Breaker) report(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.failures = 0
		if b.state != BreakerClosed {
			b.set(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.opts.Threshold {
		b.openUntil = b.now().Add(b.opts.Cooldown)
		if b.state != BreakerOpen {
			b.set(BreakerOpen)
		}
	}
}

func (b *Breaker) set(to BreakerState) {
	from := b.state
	b.state = to
	if b.opts.OnChange != nil {
		b.opts.OnChange(from, to)
	}
}
