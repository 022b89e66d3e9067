package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable is returned when the Redis revocation backend
// cannot be reached. Verification treats it as a hard failure rather than
// silently accepting a possibly revoked token.
var ErrBackendUnavailable = errors.New("revocation backend unavailable")

// RedisRevocations is a revocation set shared across processes, for
// deployments running more than one instance behind a balancer. Entries
// expire with the token's own lifetime via Redis key TTLs.
type RedisRevocations struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRevocations builds a revocation set on the given client.
// prefix namespaces the keys; "gs" is used when empty.
func NewRedisRevocations(client redis.UniversalClient, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisRevocations{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisRevocations) key(tokenID string) string {
	return r.prefix + ":revoked:" + tokenID
}

// Add stores the revocation with a TTL matching the token's remaining
// lifetime, so Redis prunes it at natural expiry. SET NX makes the first
// revoker win when instances race on the same ID. Already-expired tokens
// are not stored at all.
func (r *RedisRevocations) Add(ctx context.Context, tokenID string, notAfter time.Time) (bool, error) {
	ttl := time.Duration(0)
	if !notAfter.IsZero() {
		ttl = notAfter.Sub(r.now())
		if ttl <= 0 {
			return true, nil
		}
	}

	added, err := r.redis.SetNX(ctx, r.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return added, nil
}

// Contains checks for a live revocation entry.
func (r *RedisRevocations) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}
