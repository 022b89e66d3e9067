package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access tokens from refresh tokens. Refresh tokens
// carry no roles or permissions and must never grant direct authorization.
type Kind string

const (
	// KindAccess is the short-lived token presented on requests.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived token exchanged for new pairs.
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalid covers signature, format, issuer, and kind failures.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when a token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrRevoked is returned when a token ID is in the revocation set.
	ErrRevoked = errors.New("token revoked")
)

// Claims is the decoded token payload. The registered claims hold sub, iss,
// iat, exp, and jti; the custom fields carry the authorization facts.
type Claims struct {
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Kind        Kind     `json:"kind"`
	jwt.RegisteredClaims
}

// Config holds signing material and lifetimes for a Service.
type Config struct {
	Secret        []byte
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Service signs and verifies tokens. Safe for concurrent use; the only
// shared mutable state is the injected Revocations set.
type Service struct {
	config  Config
	method  jwt.SigningMethod
	revoked Revocations
	now     func() time.Time
}

// NewService validates cfg and builds a Service. A nil revocations set
// falls back to the in-memory implementation.
func NewService(cfg Config, revoked Revocations) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer required")
	}

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case "", "hs256":
		method = jwt.SigningMethodHS256
	case "hs384":
		method = jwt.SigningMethodHS384
	case "hs512":
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("unsupported signing method")
	}

	if revoked == nil {
		revoked = NewMemoryRevocations()
	}

	return &Service{
		config:  cfg,
		method:  method,
		revoked: revoked,
		now:     time.Now,
	}, nil
}

// IssueAccess signs an access token for the subject. The jti is random and
// collision-resistant per call; everything else is deterministic given
// identical inputs and timestamp.
func (s *Service) IssueAccess(subject, username string, roles, permissions []string) (string, error) {
	return s.issue(KindAccess, subject, username, roles, permissions, s.config.AccessTTL)
}

// IssueRefresh signs a refresh token. Refresh tokens deliberately carry no
// roles or permissions.
func (s *Service) IssueRefresh(subject, username string) (string, error) {
	return s.issue(KindRefresh, subject, username, nil, nil, s.config.RefreshTTL)
}

func (s *Service) issue(kind Kind, subject, username string, roles, permissions []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject required")
	}

	now := s.now()
	claims := Claims{
		Username:    username,
		Roles:       roles,
		Permissions: permissions,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.config.Secret)
}

// Verify checks signature, expiry, issuer, and the revocation set. Only the
// configured algorithm is accepted; algorithm confusion fails as ErrInvalid.
func (s *Service) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, ErrInvalid
	}
	if claims.ID == "" {
		return nil, ErrInvalid
	}

	revoked, err := s.revoked.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}

	return claims, nil
}

// Refresh verifies a refresh token and rotates it: the old token's jti is
// revoked before the new pair is issued, so a stolen refresh token is dead
// after first use. Revocation is first-wins, so concurrent refreshes of the
// same token produce exactly one new pair; the losers see ErrRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	claims, err := s.Verify(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	if claims.Kind != KindRefresh {
		return "", "", ErrInvalid
	}

	var notAfter time.Time
	if claims.ExpiresAt != nil {
		notAfter = claims.ExpiresAt.Time
	}
	added, err := s.revoked.Add(ctx, claims.ID, notAfter)
	if err != nil {
		return "", "", err
	}
	if !added {
		return "", "", ErrRevoked
	}

	access, err = s.IssueAccess(claims.Subject, claims.Username, nil, nil)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.IssueRefresh(claims.Subject, claims.Username)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Revoke adds a token ID to the revocation set until notAfter, at which
// point the entry becomes prunable.
func (s *Service) Revoke(ctx context.Context, tokenID string, notAfter time.Time) error {
	if tokenID == "" {
		return errors.New("token id required")
	}
	_, err := s.revoked.Add(ctx, tokenID, notAfter)
	return err
}
