package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"family-ops/internal/ratelimit"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ratelimit.Counter = (*Counter)(nil)

// fakeRedis implements commands over a map and records TTLs.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	if ok {
		f.ttls[key] = ttl
	}
	return redis.NewBoolResult(ok, nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

// Eval understands only the guard's compare-and-delete script.
func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if v, ok := f.data[keys[0]]; !ok || v != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

// expire drops key as if its TTL ran out.
func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &Counter{client: fake, prefix: "q:"}

	n, err := c.Get(ctx, "fam")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 3; i++ {
		_, err := c.Incr(ctx, "fam", time.Hour)
		require.NoError(t, err)
	}
	n, err = c.Get(ctx, "fam")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, time.Hour, fake.ttls["q:fam"])
}

func TestCounterBacksLimiter(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.NewLimiter(&Counter{client: newFakeRedis(), prefix: "q:"}, 1, 5)

	d, err := l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "fam")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	g := &Guard{client: fake, prefix: "g:", ttl: 5 * time.Second}

	release, ok, err := g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, fake.ttls["g:r1:0"])

	_, ok, err = g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = g.TryAcquire(ctx, "r1:1")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	release()
	_, ok, err = g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardStaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	g := &Guard{client: fake, prefix: "g:", ttl: 5 * time.Second}

	stale, ok, err := g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	require.True(t, ok)

	fake.expire("g:r1:0")
	current, ok, err := g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	require.True(t, ok)

	stale()
	_, ok, err = g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	assert.False(t, ok, "the expired holder must not free the new lock")

	current()
	_, ok, err = g.TryAcquire(ctx, "r1:0")
	require.NoError(t, err)
	assert.True(t, ok)
}
