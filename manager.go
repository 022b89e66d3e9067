package goShield

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goShield/apikey"
	"github.com/MrEthical07/goShield/internal/rate"
	"github.com/MrEthical07/goShield/token"
)

// Manager is the security decision core. It owns the configured components
// and exposes one hot-path operation, Authorize, plus the management facade
// for tokens and API keys. A Manager is immutable after Build and safe for
// unlimited concurrent use; reconfiguration means building a new one.
type Manager struct {
	config  Config
	tokens  *token.Service
	keys    *apikey.Store
	limiter rate.Admitter
	policy  *ProtectionPolicy
	handler AuthHandler
	metrics *Metrics
	audit   *auditDispatcher
	now     func() time.Time
}

/*
====================================
AUTHORIZE
====================================
*/

// Authorize runs the full decision pipeline for one request: path
// classification, authentication, then rate limiting. A non-nil
// SecurityContext with a nil error means the request may proceed. The
// returned error is always one of the package sentinels (or a
// *RateLimitError wrapping one), so transports can map it mechanically.
//
// Order matters: rate limiting runs after authentication so the budget is
// charged to the resolved identity, not to whoever spoofs a header.
func (m *Manager) Authorize(ctx context.Context, req *Request) (*SecurityContext, error) {
	if m == nil || m.policy == nil {
		return nil, ErrManagerNotReady
	}
	if req == nil {
		return nil, ErrAuthenticationRequired
	}

	if !m.config.Enabled {
		return m.passthrough(req), nil
	}

	start := m.now()

	switch {
	case m.policy.Classify(req.Path) == ClassExcluded:
		m.metrics.Inc(MetricRequestExcluded)
		return m.passthrough(req), nil
	case !m.policy.Protected(req.Path):
		return m.passthrough(req), nil
	}

	sc, err := m.authenticate(ctx, req)
	if err != nil {
		m.metrics.Inc(MetricRequestRejected)
		switch {
		case errors.Is(err, ErrAPIKeyInvalid):
			m.metrics.Inc(MetricAPIKeyRejected)
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
			m.metrics.Inc(MetricTokenRejected)
		}
		m.emitRequestEvent(ctx, auditEventRequestRejected, req, sc, false, ErrorCode(err))
		return nil, err
	}

	if m.limiter != nil {
		dec, admitErr := m.limiter.Admit(ctx, sc.identityKey(), sc.rateLimit)
		if admitErr != nil {
			// Fail closed: an unreachable backend must not become an
			// unlimited budget.
			m.metrics.Inc(MetricRequestRejected)
			m.emitRequestEvent(ctx, auditEventRequestRejected, req, sc, false, "backend_unavailable")
			return nil, admitErr
		}
		if !dec.Allowed {
			m.metrics.Inc(MetricRequestRateLimited)
			m.emitRequestEvent(ctx, auditEventRequestRateLimit, req, sc, false, CodeRateLimitExceeded)
			return nil, &RateLimitError{RetryAfter: dec.RetryAfter}
		}
	}

	// The window slot is already consumed; a caller that gave up mid-flight
	// still counts as an attempt.
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.metrics.Inc(MetricRequestAdmitted)
	m.metrics.Observe(MetricAuthorizeLatency, m.now().Sub(start))
	m.emitRequestEvent(ctx, auditEventRequestAdmitted, req, sc, true, "")

	return sc, nil
}

// authenticate resolves the request identity. ModeNone skips credentials
// entirely but still yields a context whose identity key is the client
// address, so the rate limiter has something to charge.
func (m *Manager) authenticate(ctx context.Context, req *Request) (*SecurityContext, error) {
	if m.config.AuthMode == ModeNone {
		return m.passthrough(req), nil
	}

	sc, err := m.handler.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (m *Manager) passthrough(req *Request) *SecurityContext {
	return &SecurityContext{
		AuthType:   AuthTypeNone,
		RequestID:  req.RequestID,
		ClientAddr: req.ClientAddr,
	}
}

// RequireRoles rejects an authorized context that is missing any of the
// named roles.
func (m *Manager) RequireRoles(ctx context.Context, sc *SecurityContext, roles ...string) error {
	for _, role := range roles {
		if !sc.HasRole(role) {
			m.metrics.Inc(MetricPermissionDenied)
			m.emitDenied(ctx, sc, "missing_role:"+role)
			return ErrPermissionDenied
		}
	}
	return nil
}

// RequirePermissions rejects an authorized context that is missing any of
// the named permissions.
func (m *Manager) RequirePermissions(ctx context.Context, sc *SecurityContext, perms ...string) error {
	for _, perm := range perms {
		if !sc.HasPermission(perm) {
			m.metrics.Inc(MetricPermissionDenied)
			m.emitDenied(ctx, sc, "missing_permission:"+perm)
			return ErrPermissionDenied
		}
	}
	return nil
}

/*
====================================
TOKEN FACADE
====================================
*/

// IssueAccessToken signs a short-lived access token for the subject.
func (m *Manager) IssueAccessToken(subject, username string, roles, permissions []string) (string, error) {
	if err := m.tokenReady(); err != nil {
		return "", err
	}

	tok, err := m.tokens.IssueAccess(subject, username, roles, permissions)
	if err != nil {
		return "", err
	}

	m.metrics.Inc(MetricTokenIssued)
	m.emitIdentityEvent(auditEventTokenIssued, subject, string(AuthTypeBearer), true, "access")
	return tok, nil
}

// IssueRefreshToken signs a long-lived refresh token for the subject.
// Refresh tokens carry identity only, never roles or permissions.
func (m *Manager) IssueRefreshToken(subject, username string) (string, error) {
	if err := m.tokenReady(); err != nil {
		return "", err
	}

	tok, err := m.tokens.IssueRefresh(subject, username)
	if err != nil {
		return "", err
	}

	m.metrics.Inc(MetricTokenIssued)
	m.emitIdentityEvent(auditEventTokenIssued, subject, string(AuthTypeBearer), true, "refresh")
	return tok, nil
}

// VerifyToken checks signature, lifetime, issuer, and revocation without
// consuming any rate limit budget.
func (m *Manager) VerifyToken(ctx context.Context, tokenStr string) (*token.Claims, error) {
	if err := m.tokenReady(); err != nil {
		return nil, err
	}

	claims, err := m.tokens.Verify(ctx, tokenStr)
	if err != nil {
		m.metrics.Inc(MetricTokenRejected)
		return nil, mapTokenError(err)
	}

	m.metrics.Inc(MetricTokenVerified)
	return claims, nil
}

// RefreshTokens rotates a refresh token: the old one is revoked before the
// new pair is issued, so each refresh token is good for exactly one
// exchange.
func (m *Manager) RefreshTokens(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	if err := m.tokenReady(); err != nil {
		return "", "", err
	}

	access, refresh, err = m.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		m.metrics.Inc(MetricTokenRejected)
		return "", "", mapTokenError(err)
	}

	m.metrics.Inc(MetricTokenRefreshed)
	m.emitIdentityEvent(auditEventTokenRefreshed, "", string(AuthTypeBearer), true, "")
	return access, refresh, nil
}

// RevokeToken adds a token ID to the revocation set until notAfter, the
// token's expiry. Revoking an already revoked or unknown ID is a no-op.
func (m *Manager) RevokeToken(ctx context.Context, tokenID string, notAfter time.Time) error {
	if err := m.tokenReady(); err != nil {
		return err
	}

	if err := m.tokens.Revoke(ctx, tokenID, notAfter); err != nil {
		return err
	}

	m.metrics.Inc(MetricTokenRevoked)
	m.emitIdentityEvent(auditEventTokenRevoked, "", string(AuthTypeBearer), true, "")
	return nil
}

func (m *Manager) tokenReady() error {
	if m == nil {
		return ErrManagerNotReady
	}
	if !m.config.Enabled {
		return ErrSecurityDisabled
	}
	if m.tokens == nil {
		return ErrManagerNotReady
	}
	return nil
}

/*
====================================
API KEY FACADE
====================================
*/

// CreateAPIKey generates a key for ownerID and returns the raw key exactly
// once. Only its digest is retained; losing the return value means
// creating a new key. rateLimit > 0 overrides the global per-minute budget
// for requests authenticated with this key.
func (m *Manager) CreateAPIKey(ownerID, name string, permissions []string, rateLimit int, expiresAt time.Time) (string, apikey.Record, error) {
	if err := m.keysReady(); err != nil {
		return "", apikey.Record{}, err
	}

	raw, rec, err := m.keys.Create(ownerID, name, permissions, rateLimit, expiresAt)
	if err != nil {
		return "", apikey.Record{}, err
	}

	m.metrics.Inc(MetricAPIKeyCreated)
	m.emitIdentityEvent(auditEventAPIKeyCreated, ownerID, string(AuthTypeAPIKey), true, rec.KeyID)
	return raw, rec, nil
}

// RevokeAPIKey permanently disables a key. Revocation is visible to
// concurrent Validate calls immediately and cannot be undone.
func (m *Manager) RevokeAPIKey(keyID string) error {
	if err := m.keysReady(); err != nil {
		return err
	}

	if err := m.keys.Revoke(keyID); err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	m.metrics.Inc(MetricAPIKeyRevoked)
	m.emitIdentityEvent(auditEventAPIKeyRevoked, "", string(AuthTypeAPIKey), true, keyID)
	return nil
}

// GetAPIKey returns the stored record for a key ID. The record never
// contains raw key material.
func (m *Manager) GetAPIKey(keyID string) (apikey.Record, error) {
	if err := m.keysReady(); err != nil {
		return apikey.Record{}, err
	}

	rec, err := m.keys.Get(keyID)
	if err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			return apikey.Record{}, ErrKeyNotFound
		}
		return apikey.Record{}, err
	}
	return rec, nil
}

// ListAPIKeys returns all records for an owner, including revoked ones,
// ordered by creation time.
func (m *Manager) ListAPIKeys(ownerID string) ([]apikey.Record, error) {
	if err := m.keysReady(); err != nil {
		return nil, err
	}
	return m.keys.List(ownerID), nil
}

func (m *Manager) keysReady() error {
	if m == nil {
		return ErrManagerNotReady
	}
	if !m.config.Enabled {
		return ErrSecurityDisabled
	}
	if m.keys == nil {
		return ErrManagerNotReady
	}
	return nil
}

/*
====================================
INTROSPECTION
====================================
*/

// Config returns a copy of the active configuration. Mutating the copy has
// no effect on the Manager.
func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return cloneConfig(m.config)
}

// Stats assembles the aggregate counters for a status endpoint.
func (m *Manager) Stats() Stats {
	if m == nil {
		return Stats{}
	}

	s := Stats{
		RequestsAdmitted:    m.metrics.Value(MetricRequestAdmitted),
		RequestsRejected:    m.metrics.Value(MetricRequestRejected),
		RequestsRateLimited: m.metrics.Value(MetricRequestRateLimited),
	}
	if m.keys != nil {
		s.ActiveAPIKeys, s.RevokedAPIKeys = m.keys.Counts()
	}
	return s
}

// MetricsSnapshot copies every counter and histogram for the exporters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// Close drains and stops the audit dispatcher. The Manager keeps answering
// Authorize after Close; only audit delivery stops.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.audit.Close()
}

/*
====================================
AUDIT HELPERS
====================================
*/

func (m *Manager) emitRequestEvent(ctx context.Context, eventType string, req *Request, sc *SecurityContext, success bool, reason string) {
	if m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  m.now(),
		EventType:  eventType,
		Path:       req.Path,
		Method:     req.Method,
		ClientAddr: req.ClientAddr,
		RequestID:  req.RequestID,
		Success:    success,
		Reason:     reason,
	}
	if sc != nil {
		event.UserID = sc.UserID
		event.AuthType = string(sc.AuthType)
	}

	m.audit.Emit(ctx, event)
}

func (m *Manager) emitDenied(ctx context.Context, sc *SecurityContext, reason string) {
	if m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: m.now(),
		EventType: auditEventPermissionDenied,
		Success:   false,
		Reason:    reason,
	}
	if sc != nil {
		event.UserID = sc.UserID
		event.AuthType = string(sc.AuthType)
		event.RequestID = sc.RequestID
		event.ClientAddr = sc.ClientAddr
	}

	m.audit.Emit(ctx, event)
}

func (m *Manager) emitIdentityEvent(eventType, userID, authType string, success bool, reason string) {
	if m.audit == nil {
		return
	}

	m.audit.Emit(context.Background(), AuditEvent{
		Timestamp: m.now(),
		EventType: eventType,
		UserID:    userID,
		AuthType:  authType,
		Success:   success,
		Reason:    reason,
	})
}
