package goShield

import (
	"errors"
	"strings"
	"time"
)

// AuthMode selects which authentication handler the Manager builds. The
// handler is chosen once at Build and never varies per request.
type AuthMode string

const (
	// ModeBearer accepts signed bearer tokens only.
	ModeBearer AuthMode = "bearer"
	// ModeAPIKey accepts API keys only.
	ModeAPIKey AuthMode = "api_key"
	// ModeHybrid tries bearer first and falls back to API keys.
	ModeHybrid AuthMode = "hybrid"
	// ModeNone disables credential checks; protected paths are still
	// rate-limited by client address.
	ModeNone AuthMode = "none"
)

// SecurityLevel is the fallback classification for paths that match neither
// the excluded nor the protected prefix lists.
type SecurityLevel string

const (
	// LevelPublic lets unclassified paths through without authentication.
	LevelPublic SecurityLevel = "public"
	// LevelProtected requires authentication on unclassified paths.
	LevelProtected SecurityLevel = "protected"
)

// Config is the immutable configuration snapshot a Manager is built from.
// Construct it once, validate at Build, and rebuild the Manager to reload.
type Config struct {
	Enabled      bool
	AuthMode     AuthMode
	DefaultLevel SecurityLevel

	JWT       JWTConfig
	APIKey    APIKeyConfig
	RateLimit RateLimitConfig
	Paths     PathConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds signing material and token lifetimes.
type JWTConfig struct {
	Secret        []byte
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

/*
====================================
API KEY CONFIG
====================================
*/

// APIKeyConfig controls how API keys are presented and generated.
type APIKeyConfig struct {
	Header     string // header checked first
	QueryParam string // fallback when the header is absent
	KeyLength  int    // random bytes per generated key, 16..64
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the fixed-window admission controller. The window
// length is fixed at 60 seconds.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
	MaxEntries        int           // cap on tracked identities, 0 = default
	IdleGrace         time.Duration // idle time past the window before eviction
}

/*
====================================
PATH CONFIG
====================================
*/

// PathConfig lists path prefixes by classification. Exclusion always wins
// over protection so health and documentation endpoints cannot be locked
// out by misconfiguration. Matching is exact-segment: "/api" matches
// "/api" and "/api/v1" but never "/apiv1".
type PathConfig struct {
	Excluded  []string
	Protected []string
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the lock-free counter set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Enabled:      true,
		AuthMode:     ModeBearer,
		DefaultLevel: LevelProtected,
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "goShield",
		},
		APIKey: APIKeyConfig{
			Header:     "X-API-Key",
			QueryParam: "api_key",
			KeyLength:  32,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			BurstSize:         10,
			MaxEntries:        10000,
			IdleGrace:         5 * time.Minute,
		},
		Paths: PathConfig{
			Excluded:  []string{"/docs", "/redoc", "/openapi.json", "/health", "/metrics"},
			Protected: []string{"/api/v1"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Paths.Excluded = cloneStrings(cfg.Paths.Excluded)
	out.Paths.Protected = cloneStrings(cfg.Paths.Protected)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects invalid configuration combinations at construction time.
// A Validate failure is the only fatal error class: Build refuses to
// produce a Manager from a config that fails here.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case ModeBearer, ModeAPIKey, ModeHybrid, ModeNone:
	default:
		return errors.New("unsupported auth mode")
	}

	switch c.DefaultLevel {
	case LevelPublic, LevelProtected:
	default:
		return errors.New("unsupported default security level")
	}

	// JWT material is required whenever bearer tokens can be presented.
	if c.AuthMode == ModeBearer || c.AuthMode == ModeHybrid {
		if len(c.JWT.Secret) < 32 {
			return errors.New("JWT Secret must be at least 32 bytes")
		}
		if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "hs384" && c.JWT.SigningMethod != "hs512" {
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT AccessTTL must be > 0")
		}
		if c.JWT.RefreshTTL <= 0 {
			return errors.New("JWT RefreshTTL must be > 0")
		}
		if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
			return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
		}
		if strings.TrimSpace(c.JWT.Issuer) == "" {
			return errors.New("JWT Issuer must not be blank")
		}
	}

	// API key
	if c.AuthMode == ModeAPIKey || c.AuthMode == ModeHybrid {
		if strings.TrimSpace(c.APIKey.Header) == "" && strings.TrimSpace(c.APIKey.QueryParam) == "" {
			return errors.New("APIKey requires a header or query parameter name")
		}
		if c.APIKey.KeyLength < 16 || c.APIKey.KeyLength > 64 {
			return errors.New("APIKey KeyLength must be between 16 and 64")
		}
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("RateLimit RequestsPerMinute must be > 0")
		}
		if c.RateLimit.BurstSize < 0 {
			return errors.New("RateLimit BurstSize must be >= 0")
		}
		if c.RateLimit.MaxEntries < 0 {
			return errors.New("RateLimit MaxEntries must be >= 0")
		}
		if c.RateLimit.IdleGrace < 0 {
			return errors.New("RateLimit IdleGrace must be >= 0")
		}
	}

	for _, p := range c.Paths.Excluded {
		if !strings.HasPrefix(p, "/") {
			return errors.New("excluded path prefixes must start with /")
		}
	}
	for _, p := range c.Paths.Protected {
		if !strings.HasPrefix(p, "/") {
			return errors.New("protected path prefixes must start with /")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
