package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("dial tcp: connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock, *[]string) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	b := NewBreaker(BreakerOptions{
		Threshold: threshold,
		Cooldown:  cooldown,
		OnChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = clock.now
	return b, clock, &transitions
}

func fail(context.Context) error    { return errRedisDown }
func succeed(context.Context) error { return nil }

func TestBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerOptions{})
	assert.Equal(t, 5, b.opts.Threshold)
	assert.Equal(t, 30*time.Second, b.opts.Cooldown)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()
	b, _, transitions := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errRedisDown)
	}
	assert.Equal(t, BreakerClosed, b.State())

	assert.ErrorIs(t, b.Do(ctx, fail), errRedisDown)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, *transitions)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.NoError(t, b.Do(ctx, succeed))
	_ = b.Do(ctx, fail)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	t.Run("successful probe closes", func(t *testing.T) {
		t.Parallel()
		b, clock, transitions := newTestBreaker(1, time.Minute)
		ctx := context.Background()

		_ = b.Do(ctx, fail)
		require.Equal(t, BreakerOpen, b.State())

		clock.t = clock.t.Add(time.Minute)
		assert.Equal(t, BreakerHalfOpen, b.State())
		require.NoError(t, b.Do(ctx, succeed))
		assert.Equal(t, BreakerClosed, b.State())
		assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, *transitions)
	})

	t.Run("failed probe reopens", func(t *testing.T) {
		t.Parallel()
		b, clock, _ := newTestBreaker(3, time.Minute)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_ = b.Do(ctx, fail)
		}
		clock.t = clock.t.Add(2 * time.Minute)
		assert.ErrorIs(t, b.Do(ctx, fail), errRedisDown)
		assert.Equal(t, BreakerOpen, b.State())

		clock.t = clock.t.Add(30 * time.Second)
		assert.ErrorIs(t, b.Do(ctx, succeed), ErrBreakerOpen, "cooldown restarts from the failed probe")
	})
}

func TestCall_ReturnsValue(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBreaker(1, time.Minute)

	v, err := Call(context.Background(), b, func(context.Context) (string, error) { return "cached", nil })
	require.NoError(t, err)
	assert.Equal(t, "cached", v)

	_, _ = Call(context.Background(), b, func(context.Context) (string, error) { return "", errRedisDown })
	v, err = Call(context.Background(), b, func(context.Context) (string, error) { return "unreachable", nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Empty(t, v)
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
