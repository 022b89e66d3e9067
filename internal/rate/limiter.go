package rate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Window is the fixed admission window length.
const Window = time.Minute

const (
	shardCount    = 16
	sweepInterval = 256 // admissions per shard between eviction sweeps
)

// Decision is the outcome of one admission check. RetryAfter is only
// meaningful on rejection and reports the remaining time in the window.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Admitter is the admission-control capability the security manager
// depends on. limit overrides the configured per-minute budget when > 0
// (per-key API key limits); 0 means use the configured default.
type Admitter interface {
	Admit(ctx context.Context, identity string, limit int) (Decision, error)
}

// Config holds limiter tuning parameters.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
	MaxEntries        int           // cap on tracked identities, 0 = 10000
	IdleGrace         time.Duration // idle time past the window before eviction
}

// counter is one identity's live window state.
type counter struct {
	windowStart    time.Time
	count          int
	burstRemaining int
	lastAccess     time.Time
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
	ops      int
}

// Limiter is the in-memory fixed-window limiter. Counters live in sharded
// maps; an admission takes exactly one shard mutex around the counter
// update, never around the caller's authentication path.
type Limiter struct {
	config Config
	shards [shardCount]shard
	now    func() time.Time
}

// New builds an in-memory limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = 5 * time.Minute
	}

	l := &Limiter{
		config: cfg,
		now:    time.Now,
	}
	for i := range l.shards {
		l.shards[i].counters = make(map[string]*counter)
	}
	return l
}

func (l *Limiter) shardFor(identity string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &l.shards[int(h.Sum32())%shardCount]
}

// Admit counts the attempt and decides admission. Counting happens whether
// or not the surrounding request later completes: attempted requests spend
// budget, so cancellation cannot be used to probe limits for free.
func (l *Limiter) Admit(_ context.Context, identity string, limit int) (Decision, error) {
	if limit <= 0 {
		limit = l.config.RequestsPerMinute
	}

	now := l.now()
	sh := l.shardFor(identity)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[identity]
	if !ok || now.Sub(c.windowStart) >= Window {
		if !ok {
			if len(sh.counters) >= l.config.MaxEntries/shardCount+1 {
				l.evictStalestLocked(sh, now)
			}
			c = &counter{}
			sh.counters[identity] = c
		}
		c.windowStart = now
		c.count = 0
		c.burstRemaining = l.config.BurstSize
	}
	c.lastAccess = now

	sh.ops++
	if sh.ops >= sweepInterval {
		sh.ops = 0
		l.sweepLocked(sh, now)
	}

	c.count++
	switch {
	case c.count <= limit:
		return Decision{Allowed: true, Remaining: limit + c.burstRemaining - c.count}, nil
	case c.burstRemaining > 0:
		c.burstRemaining--
		return Decision{Allowed: true, Remaining: c.burstRemaining}, nil
	default:
		return Decision{RetryAfter: c.windowStart.Add(Window).Sub(now)}, nil
	}
}

// sweepLocked drops entries idle past the window plus the grace period.
func (l *Limiter) sweepLocked(sh *shard, now time.Time) {
	cutoff := now.Add(-(Window + l.config.IdleGrace))
	for id, c := range sh.counters {
		if c.lastAccess.Before(cutoff) {
			delete(sh.counters, id)
		}
	}
}

// evictStalestLocked drops the least recently touched entry to honor the
// tracked-identity cap.
func (l *Limiter) evictStalestLocked(sh *shard, now time.Time) {
	var (
		stalest     string
		stalestSeen = now.Add(time.Second)
	)
	for id, c := range sh.counters {
		if c.lastAccess.Before(stalestSeen) {
			stalest = id
			stalestSeen = c.lastAccess
		}
	}
	if stalest != "" {
		delete(sh.counters, stalest)
	}
}

// Tracked returns the number of live counters across all shards.
func (l *Limiter) Tracked() int {
	total := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		total += len(sh.counters)
		sh.mu.Unlock()
	}
	return total
}
