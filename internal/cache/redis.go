// Package cache holds the Redis-backed quota counter and in-flight guard
// used when several replicas share one deployment.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// commands is the slice of the Redis API this package uses.
type commands interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Counter is a windowed counter stored in Redis.
type Counter struct {
	client commands
	prefix string
}

// NewCounter creates a Counter whose keys live under "familyops:quota:".
func NewCounter(client *redis.Client) *Counter {
	return &Counter{client: client, prefix: "familyops:quota:"}
}

// Incr increments key and sets its TTL when the window opens.
func (c *Counter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, c.prefix+key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, c.prefix+key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Get returns the current count; a missing key counts as zero.
func (c *Counter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, c.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Guard is a cross-process in-flight lock. Entries expire after ttl so a
// crashed holder cannot wedge a key.
type Guard struct {
	client commands
	prefix string
	ttl    time.Duration
}

// NewGuard creates a Guard with the given lock TTL.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, prefix: "familyops:inflight:", ttl: ttl}
}

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// TryAcquire takes key if nobody holds it. The returned release func is nil
// when the key was not acquired. Release only drops the key while it still
// carries this holder's token, so a holder whose entry expired cannot free a
// later holder's lock.
func (g *Guard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		_ = g.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{g.prefix + key}, token).Err()
	}
	return release, true, nil
}
