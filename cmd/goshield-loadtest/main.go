// Command goshield-loadtest drives the Authorize hot path under
// configurable concurrency and reports latency percentiles per credential
// type. Without -redis-addr it runs fully in-process with in-memory
// backends; point it at a real Redis to measure the shared-backend mode.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goShield "github.com/MrEthical07/goShield"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		identities  = flag.Int("identities", 10000, "number of identities to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (bearer + api key)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or in-memory backends are used")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	builder := goShield.New().
		WithAuthMode(goShield.ModeHybrid).
		WithJWTSecret(bytes.Repeat([]byte("l"), 32)).
		WithIssuer("goshield-loadtest").
		WithRateLimit(1_000_000, 0).
		WithMetrics(true, true)

	var cleanup func()
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		builder = builder.WithRedis(client)
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Println("using in-memory backends")
	}
	defer cleanup()

	manager, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	fmt.Printf("seeding %d tokens and %d api keys...\n", *identities, *identities)
	startSeed := time.Now()

	tokens := make([]string, *identities)
	keys := make([]string, *identities)
	for i := 0; i < *identities; i++ {
		subject := fmt.Sprintf("user-%d", i)
		tok, err := manager.IssueAccessToken(subject, subject, []string{"user"}, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "token seed failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = tok

		raw, _, err := manager.CreateAPIKey(subject, fmt.Sprintf("key-%d", i), nil, 0, time.Time{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "key seed failed: %v\n", err)
			os.Exit(1)
		}
		keys[i] = raw
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	bearerStats := runPhase(ctx, manager, *ops, *concurrency, func(r *rand.Rand) *goShield.Request {
		return &goShield.Request{
			Method: "GET",
			Path:   "/api/v1/resource",
			Header: map[string][]string{
				"Authorization": {"Bearer " + tokens[r.Intn(len(tokens))]},
			},
			ClientAddr: "127.0.0.1",
		}
	})

	apiKeyStats := runPhase(ctx, manager, *ops, *concurrency, func(r *rand.Rand) *goShield.Request {
		return &goShield.Request{
			Method: "GET",
			Path:   "/api/v1/resource",
			Header: map[string][]string{
				"X-API-Key": {keys[r.Intn(len(keys))]},
			},
			ClientAddr: "127.0.0.1",
		}
	})

	fmt.Println("---- results ----")
	printStats("bearer", bearerStats)
	printStats("api_key", apiKeyStats)
}

func runPhase(ctx context.Context, manager *goShield.Manager, ops, concurrency int, build func(*rand.Rand) *goShield.Request) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				req := build(r)
				t0 := time.Now()
				_, err := manager.Authorize(ctx, req)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
