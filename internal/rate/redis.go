package rate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same fixed-window semantics on shared Redis
// counters, so multiple instances behind a balancer spend one budget.
// The burst allowance folds into the count bound: within one window,
// count <= limit+burst admits exactly the requests the in-memory limiter
// would admit.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

// NewRedisLimiter builds a limiter on the given client. prefix namespaces
// the counter keys; "gs" is used when empty.
func NewRedisLimiter(client redis.UniversalClient, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisLimiter{
		redis:  client,
		config: cfg,
		prefix: prefix,
	}
}

func (l *RedisLimiter) key(identity string) string {
	return l.prefix + ":rl:" + identity
}

// Admit increments the window counter and decides admission. Window
// boundaries come from the key TTL: the TTL is set only on the first hit,
// so the counter resets exactly one window after it was opened.
func (l *RedisLimiter) Admit(ctx context.Context, identity string, limit int) (Decision, error) {
	if limit <= 0 {
		limit = l.config.RequestsPerMinute
	}

	key := l.key(identity)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	budget := int64(limit + l.config.BurstSize)
	if count <= budget {
		return Decision{Allowed: true, Remaining: int(budget - count)}, nil
	}

	retryAfter, err := l.redis.TTL(ctx, key).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = Window
	}
	return Decision{RetryAfter: retryAfter}, nil
}
