package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const shardCount = 16

var (
	// ErrInvalidKey is returned for unknown, revoked, and expired keys
	// alike; callers cannot distinguish which.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrNotFound is returned by management operations for unknown key IDs.
	ErrNotFound = errors.New("api key not found")
)

// Record is the metadata stored for one API key. Secret material never
// appears here: only the store-internal digest ties a record to its key.
type Record struct {
	KeyID       string
	OwnerID     string
	Name        string
	Permissions []string
	RateLimit   int // per-minute override; 0 = use the global limit
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero = never expires
	LastUsed    time.Time
	Revoked     bool
}

// entry holds the immutable record fields plus the atomically mutable
// lifecycle state, so Validate and Revoke never block each other.
type entry struct {
	rec      Record
	revoked  atomic.Bool
	lastUsed atomic.Int64 // unix nanos, 0 = never
}

func (e *entry) snapshot() Record {
	rec := e.rec
	rec.Permissions = append([]string(nil), e.rec.Permissions...)
	rec.Revoked = e.revoked.Load()
	if ns := e.lastUsed.Load(); ns > 0 {
		rec.LastUsed = time.Unix(0, ns)
	}
	return rec
}

type shard struct {
	mu       sync.RWMutex
	byDigest map[[sha256.Size]byte]*entry
}

// Store creates, validates, lists, and revokes API keys. Safe for
// concurrent use; see the package comment for the locking scheme.
type Store struct {
	keyLength int
	shards    [shardCount]shard

	idMu sync.RWMutex
	byID map[string]*entry

	created      atomic.Uint64
	revokedCount atomic.Uint64

	now func() time.Time
}

// NewStore builds an empty store generating keys of keyLength random bytes.
func NewStore(keyLength int) (*Store, error) {
	if keyLength < 16 || keyLength > 64 {
		return nil, errors.New("key length must be between 16 and 64")
	}
	s := &Store{
		keyLength: keyLength,
		byID:      make(map[string]*entry),
		now:       time.Now,
	}
	for i := range s.shards {
		s.shards[i].byDigest = make(map[[sha256.Size]byte]*entry)
	}
	return s, nil
}

func (s *Store) shardFor(digest [sha256.Size]byte) *shard {
	return &s.shards[int(digest[0])%shardCount]
}

// Create generates a key and returns the raw value exactly once. The raw
// key is never stored or retrievable again. A zero expiresAt means the key
// never expires; rateLimit 0 means the global per-minute limit applies.
func (s *Store) Create(ownerID, name string, permissions []string, rateLimit int, expiresAt time.Time) (string, Record, error) {
	if name == "" {
		return "", Record{}, errors.New("key name required")
	}
	if rateLimit < 0 {
		return "", Record{}, errors.New("rate limit must be >= 0")
	}

	raw := make([]byte, s.keyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", Record{}, err
	}
	rawKey := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(rawKey))

	e := &entry{
		rec: Record{
			KeyID:       uuid.NewString(),
			OwnerID:     ownerID,
			Name:        name,
			Permissions: append([]string(nil), permissions...),
			RateLimit:   rateLimit,
			CreatedAt:   s.now(),
			ExpiresAt:   expiresAt,
		},
	}

	sh := s.shardFor(digest)
	sh.mu.Lock()
	sh.byDigest[digest] = e
	sh.mu.Unlock()

	s.idMu.Lock()
	s.byID[e.rec.KeyID] = e
	s.idMu.Unlock()

	s.created.Add(1)

	return rawKey, e.snapshot(), nil
}

// Validate derives the digest of the presented key and looks it up. Hashing
// before the lookup keeps the comparison timing independent of how close a
// guess is to a real key.
func (s *Store) Validate(rawKey string) (Record, error) {
	if rawKey == "" {
		return Record{}, ErrInvalidKey
	}

	digest := sha256.Sum256([]byte(rawKey))

	sh := s.shardFor(digest)
	sh.mu.RLock()
	e, ok := sh.byDigest[digest]
	sh.mu.RUnlock()
	if !ok {
		return Record{}, ErrInvalidKey
	}

	if e.revoked.Load() {
		return Record{}, ErrInvalidKey
	}
	if !e.rec.ExpiresAt.IsZero() && s.now().After(e.rec.ExpiresAt) {
		return Record{}, ErrInvalidKey
	}

	e.lastUsed.Store(s.now().UnixNano())
	return e.snapshot(), nil
}

// Revoke marks the key rejected on all future lookups. Idempotent; the
// record is retained for audit, never physically deleted.
func (s *Store) Revoke(keyID string) error {
	s.idMu.RLock()
	e, ok := s.byID[keyID]
	s.idMu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if e.revoked.CompareAndSwap(false, true) {
		s.revokedCount.Add(1)
	}
	return nil
}

// Get returns the record for a key ID.
func (s *Store) Get(keyID string) (Record, error) {
	s.idMu.RLock()
	e, ok := s.byID[keyID]
	s.idMu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return e.snapshot(), nil
}

// List returns records for the owner, or every record when ownerID is
// empty, ordered by creation time. Secret material is never included.
func (s *Store) List(ownerID string) []Record {
	s.idMu.RLock()
	out := make([]Record, 0, len(s.byID))
	for _, e := range s.byID {
		if ownerID != "" && e.rec.OwnerID != ownerID {
			continue
		}
		out = append(out, e.snapshot())
	}
	s.idMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Counts returns (active, revoked) key totals for the statistics surface.
func (s *Store) Counts() (active, revoked uint64) {
	created := s.created.Load()
	revoked = s.revokedCount.Load()
	return created - revoked, revoked
}
