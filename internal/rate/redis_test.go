package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T, cfg Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLimiter(client, cfg, "gstest"), srv
}

func TestRedisAdmitBudgetPlusBurst(t *testing.T) {
	l, _ := newTestRedisLimiter(t, Config{RequestsPerMinute: 5, BurstSize: 2})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		dec, err := l.Admit(ctx, "user-1", 0)
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
	}

	dec, err := l.Admit(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if dec.Allowed {
		t.Fatal("8th request should be rejected")
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > Window {
		t.Fatalf("unexpected RetryAfter: %v", dec.RetryAfter)
	}
}

func TestRedisAdmitWindowExpiry(t *testing.T) {
	l, srv := newTestRedisLimiter(t, Config{RequestsPerMinute: 1, BurstSize: 0})
	ctx := context.Background()

	if dec, _ := l.Admit(ctx, "user-1", 0); !dec.Allowed {
		t.Fatal("first request should pass")
	}
	if dec, _ := l.Admit(ctx, "user-1", 0); dec.Allowed {
		t.Fatal("second request should be rejected")
	}

	srv.FastForward(Window + time.Second)

	if dec, _ := l.Admit(ctx, "user-1", 0); !dec.Allowed {
		t.Fatal("fresh window should admit again")
	}
}

func TestRedisAdmitPerIdentityOverride(t *testing.T) {
	l, _ := newTestRedisLimiter(t, Config{RequestsPerMinute: 100, BurstSize: 0})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if dec, _ := l.Admit(ctx, "key-1", 2); !dec.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
	}
	if dec, _ := l.Admit(ctx, "key-1", 2); dec.Allowed {
		t.Fatal("override budget should be exhausted")
	}
}

func TestRedisAdmitSharedAcrossInstances(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := Config{RequestsPerMinute: 2, BurstSize: 0}
	a := NewRedisLimiter(client, cfg, "gstest")
	b := NewRedisLimiter(client, cfg, "gstest")
	ctx := context.Background()

	if dec, _ := a.Admit(ctx, "user-1", 0); !dec.Allowed {
		t.Fatal("first request via a should pass")
	}
	if dec, _ := b.Admit(ctx, "user-1", 0); !dec.Allowed {
		t.Fatal("second request via b should pass")
	}
	if dec, _ := a.Admit(ctx, "user-1", 0); dec.Allowed {
		t.Fatal("third request should be rejected; budget is shared")
	}
}

func TestRedisAdmitBackendDownFailsClosed(t *testing.T) {
	l, srv := newTestRedisLimiter(t, Config{RequestsPerMinute: 5, BurstSize: 0})
	srv.Close()

	_, err := l.Admit(context.Background(), "user-1", 0)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
