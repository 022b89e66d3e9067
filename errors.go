package goShield

import (
	"errors"
	"time"
)

var (
	// ErrAuthenticationRequired is returned when a protected path is hit
	// without any usable credential.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrTokenInvalid is returned on bearer token signature or format failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a token's jti is in the revocation set.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrAPIKeyInvalid is returned on unknown, malformed, expired, or revoked
	// API keys. Callers are deliberately not told which.
	ErrAPIKeyInvalid = errors.New("invalid api key")
	// ErrRateLimited is returned when an identity exhausted its window budget
	// and burst allowance.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrPermissionDenied is returned when an authenticated caller lacks a
	// required role or permission. Distinct from authentication failure.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrManagerNotReady is returned when a Manager is used before Build.
	ErrManagerNotReady = errors.New("manager not initialized")
	// ErrKeyNotFound is returned by API key management operations for an
	// unknown key ID.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrSecurityDisabled is returned by credential operations that require
	// an active auth mode.
	ErrSecurityDisabled = errors.New("security disabled")
)

// RateLimitError is the rejection returned by Authorize when an identity
// exhausted its budget. It unwraps to [ErrRateLimited] and carries the
// remaining time in the current window for the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Machine error codes for the wire-level error payload. The middleware
// package maps these to HTTP status codes.
const (
	CodeAuthenticationRequired = "authentication_required"
	CodeInvalidToken           = "invalid_token"
	CodeExpiredToken           = "expired_token"
	CodeRevokedToken           = "revoked_token"
	CodeInvalidAPIKey          = "invalid_api_key"
	CodeRateLimitExceeded      = "rate_limit_exceeded"
	CodeForbidden              = "forbidden"
)

// ErrorCode maps a goShield error to its machine code. Unknown errors map to
// authentication_required, the safest 401-class default.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return CodeExpiredToken
	case errors.Is(err, ErrTokenRevoked):
		return CodeRevokedToken
	case errors.Is(err, ErrTokenInvalid):
		return CodeInvalidToken
	case errors.Is(err, ErrAPIKeyInvalid):
		return CodeInvalidAPIKey
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimitExceeded
	case errors.Is(err, ErrPermissionDenied):
		return CodeForbidden
	default:
		return CodeAuthenticationRequired
	}
}
