package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(perHour, perDay int) (*Limiter, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	counter := NewMemoryCounter()
	counter.now = clk.now
	l := NewLimiter(counter, perHour, perDay)
	l.now = clk.now
	return l, clk
}

func TestLimiterHourlyWindow(t *testing.T) {
	ctx := context.Background()
	l, clk := newTestLimiter(2, 50)

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "fam")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "hourly")

	other, err := l.Allow(ctx, "other-fam")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "quota is per key")

	clk.t = clk.t.Add(time.Hour)
	d, err = l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterDailyWindow(t *testing.T) {
	ctx := context.Background()
	l, clk := newTestLimiter(10, 3)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "fam")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		clk.t = clk.t.Add(time.Hour)
	}
	d, err := l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "daily")
}

func TestLimiterDeniedCallsDoNotConsume(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(1, 50)

	first, err := l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Remaining)

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "fam")
		require.NoError(t, err)
	}
	n, err := l.counter.Get(ctx, "ai:fam:d:2024-05-01")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
