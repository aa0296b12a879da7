// Package ratelimit enforces the per-family AI generation quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Counter is a windowed counter backend.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int
}

// Limiter allows a bounded number of generations per hour and per day.
type Limiter struct {
	counter Counter
	perHour int
	perDay  int
	now     func() time.Time
}

// NewLimiter creates a Limiter. A non-positive limit disables that window.
func NewLimiter(counter Counter, perHour, perDay int) *Limiter {
	return &Limiter{counter: counter, perHour: perHour, perDay: perDay, now: time.Now}
}

// Allow checks both windows for key and consumes one unit only when both
// have room.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UTC()
	hourKey := fmt.Sprintf("ai:%s:h:%s", key, now.Format("2006-01-02T15"))
	dayKey := fmt.Sprintf("ai:%s:d:%s", key, now.Format("2006-01-02"))

	hourly, err := l.counter.Get(ctx, hourKey)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read hourly quota: %w", err)
	}
	daily, err := l.counter.Get(ctx, dayKey)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read daily quota: %w", err)
	}

	if l.perHour > 0 && hourly >= int64(l.perHour) {
		return Decision{Reason: fmt.Sprintf("hourly limit of %d reached", l.perHour)}, nil
	}
	if l.perDay > 0 && daily >= int64(l.perDay) {
		return Decision{Reason: fmt.Sprintf("daily limit of %d reached", l.perDay)}, nil
	}

	hourly, err = l.counter.Incr(ctx, hourKey, time.Hour)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to consume hourly quota: %w", err)
	}
	daily, err = l.counter.Incr(ctx, dayKey, 24*time.Hour)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to consume daily quota: %w", err)
	}

	return Decision{Allowed: true, Remaining: l.remaining(hourly, daily)}, nil
}

func (l *Limiter) remaining(hourly, daily int64) int {
	r := -1
	if l.perHour > 0 {
		r = l.perHour - int(hourly)
	}
	if l.perDay > 0 {
		if d := l.perDay - int(daily); r < 0 || d < r {
			r = d
		}
	}
	return max(r, 0)
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]counterEntry
	now     func() time.Time
}

type counterEntry struct {
	n       int64
	expires time.Time
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]counterEntry), now: time.Now}
}

// Incr increments key, starting a fresh window when it has expired.
func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expires) {
		e = counterEntry{expires: now.Add(ttl)}
	}
	e.n++
	c.entries[key] = e
	return e.n, nil
}

// Get returns the live count for key.
func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		return 0, nil
	}
	return e.n, nil
}
