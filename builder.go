package goShield

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goShield/apikey"
	"github.com/MrEthical07/goShield/internal/rate"
	"github.com/MrEthical07/goShield/token"
)

// Builder assembles a Manager. Start from New, chain the With* setters,
// then call Build exactly once. Builders are not safe for concurrent use
// and cannot be reused after Build.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink
	built     bool
}

// New returns a Builder preloaded with the default configuration: bearer
// mode, protected by default, 60 requests per minute with a burst of 10,
// and the conventional documentation and health paths excluded.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. Setters applied afterwards
// still take effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithEnabled toggles the whole security layer. A disabled Manager admits
// every request untouched.
func (b *Builder) WithEnabled(enabled bool) *Builder {
	b.config.Enabled = enabled
	return b
}

// WithAuthMode selects the authentication strategy.
func (b *Builder) WithAuthMode(mode AuthMode) *Builder {
	b.config.AuthMode = mode
	return b
}

// WithDefaultLevel sets the classification for paths that match neither
// prefix list.
func (b *Builder) WithDefaultLevel(level SecurityLevel) *Builder {
	b.config.DefaultLevel = level
	return b
}

// WithJWTSecret sets the HMAC signing secret. At least 32 bytes.
func (b *Builder) WithJWTSecret(secret []byte) *Builder {
	b.config.JWT.Secret = cloneBytes(secret)
	return b
}

// WithTokenTTLs sets the access and refresh token lifetimes.
func (b *Builder) WithTokenTTLs(access, refresh time.Duration) *Builder {
	b.config.JWT.AccessTTL = access
	b.config.JWT.RefreshTTL = refresh
	return b
}

// WithIssuer sets the iss claim stamped on and required from every token.
func (b *Builder) WithIssuer(issuer string) *Builder {
	b.config.JWT.Issuer = issuer
	return b
}

// WithAPIKeySources sets where API keys are read from. The header wins
// when both carry a value.
func (b *Builder) WithAPIKeySources(header, queryParam string) *Builder {
	b.config.APIKey.Header = header
	b.config.APIKey.QueryParam = queryParam
	return b
}

// WithRateLimit enables fixed-window rate limiting with the given
// per-minute budget and burst allowance.
func (b *Builder) WithRateLimit(requestsPerMinute, burstSize int) *Builder {
	b.config.RateLimit.Enabled = true
	b.config.RateLimit.RequestsPerMinute = requestsPerMinute
	b.config.RateLimit.BurstSize = burstSize
	return b
}

// WithoutRateLimit disables rate limiting entirely.
func (b *Builder) WithoutRateLimit() *Builder {
	b.config.RateLimit.Enabled = false
	return b
}

// WithExcludedPaths replaces the excluded prefix list.
func (b *Builder) WithExcludedPaths(prefixes ...string) *Builder {
	b.config.Paths.Excluded = cloneStrings(prefixes)
	return b
}

// WithProtectedPaths replaces the protected prefix list.
func (b *Builder) WithProtectedPaths(prefixes ...string) *Builder {
	b.config.Paths.Protected = cloneStrings(prefixes)
	return b
}

// WithRedis backs token revocation and rate limiting with Redis so
// multiple instances share one revocation set and one budget per identity.
// Without it both are process-local.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink enables audit logging into the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetrics toggles the counter set and, independently, the Authorize
// latency histogram.
func (b *Builder) WithMetrics(enabled, latencyHistograms bool) *Builder {
	b.config.Metrics.Enabled = enabled
	b.config.Metrics.EnableLatencyHistograms = latencyHistograms
	return b
}

// Build validates the configuration and assembles the Manager. Every
// component is constructed here; nothing is lazily initialized on the
// request path.
func (b *Builder) Build() (*Manager, error) {
	if b == nil {
		return nil, ErrManagerNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config: cfg,
		policy: newProtectionPolicy(cfg.Paths, cfg.DefaultLevel),
		now:    time.Now,
	}

	if len(cfg.JWT.Secret) > 0 {
		var revoked token.Revocations
		if b.redis != nil {
			revoked = token.NewRedisRevocations(b.redis, "goshield")
		} else {
			revoked = token.NewMemoryRevocations()
		}

		tokens, err := token.NewService(token.Config{
			Secret:        cfg.JWT.Secret,
			SigningMethod: cfg.JWT.SigningMethod,
			AccessTTL:     cfg.JWT.AccessTTL,
			RefreshTTL:    cfg.JWT.RefreshTTL,
			Issuer:        cfg.JWT.Issuer,
		}, revoked)
		if err != nil {
			return nil, err
		}
		m.tokens = tokens
	}

	keyLength := cfg.APIKey.KeyLength
	if keyLength == 0 {
		keyLength = defaultConfig().APIKey.KeyLength
	}
	keys, err := apikey.NewStore(keyLength)
	if err != nil {
		return nil, err
	}
	m.keys = keys

	if cfg.RateLimit.Enabled {
		rateCfg := rate.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.BurstSize,
			MaxEntries:        cfg.RateLimit.MaxEntries,
			IdleGrace:         cfg.RateLimit.IdleGrace,
		}
		if b.redis != nil {
			m.limiter = rate.NewRedisLimiter(b.redis, rateCfg, "goshield")
		} else {
			m.limiter = rate.New(rateCfg)
		}
	}

	switch cfg.AuthMode {
	case ModeBearer:
		m.handler = &bearerHandler{tokens: m.tokens}
	case ModeAPIKey:
		m.handler = &apiKeyHandler{
			keys:       m.keys,
			header:     cfg.APIKey.Header,
			queryParam: cfg.APIKey.QueryParam,
		}
	case ModeHybrid:
		m.handler = &hybridHandler{
			bearer: &bearerHandler{tokens: m.tokens},
			apiKey: &apiKeyHandler{
				keys:       m.keys,
				header:     cfg.APIKey.Header,
				queryParam: cfg.APIKey.QueryParam,
			},
		}
	case ModeNone:
		// No handler: Authorize resolves identity from the client address.
	}

	m.metrics = NewMetrics(cfg.Metrics)
	m.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true
	return m, nil
}
