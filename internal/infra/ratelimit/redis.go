package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lendeefi/internal/domain"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] counter, ARGV[1] window in milliseconds. Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Redis shares one fixed window per key across every daemon pointed at the
// same server.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis connects and pings so a misconfigured address fails at startup.
func DialRedis(ctx context.Context, opts RedisOptions, now func() time.Time) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, now), nil
}

func NewRedis(client redis.UniversalClient, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{client: client, now: now}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	ms := span.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	reply, err := fixedWindow.Run(ctx, r.client, []string{key}, ms).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected rate limit reply")
	}
	used, ttl := reply[0], reply[1]

	decision := domain.RateLimitDecision{
		Allowed: used <= int64(limit),
		Limit:   limit,
		ResetAt: r.now(),
	}
	if ttl > 0 {
		decision.ResetAt = decision.ResetAt.Add(time.Duration(ttl) * time.Millisecond)
	}
	if remaining := int64(limit) - used; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	return decision, nil
}

var (
	_ domain.RateLimiter = (*Memory)(nil)
	_ domain.RateLimiter = (*Redis)(nil)
)
