package goShield

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goShield/apikey"
	"github.com/MrEthical07/goShield/token"
)

// AuthHandler is the single capability the middleware pipeline needs from
// an authentication strategy: turn a request descriptor into a
// SecurityContext or a typed failure. The active variant is chosen once at
// Build from the configured auth mode, never per request.
type AuthHandler interface {
	Authenticate(ctx context.Context, req *Request) (*SecurityContext, error)
}

/*
====================================
BEARER
====================================
*/

type bearerHandler struct {
	tokens *token.Service
}

func (h *bearerHandler) Authenticate(ctx context.Context, req *Request) (*SecurityContext, error) {
	raw, ok := bearerToken(req.HeaderValue("Authorization"))
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	claims, err := h.tokens.Verify(ctx, raw)
	if err != nil {
		return nil, mapTokenError(err)
	}
	// Refresh tokens identify but never authorize requests.
	if claims.Kind != token.KindAccess {
		return nil, ErrTokenInvalid
	}

	return &SecurityContext{
		UserID:          claims.Subject,
		Username:        claims.Username,
		AuthType:        AuthTypeBearer,
		Roles:           claims.Roles,
		Permissions:     claims.Permissions,
		IsAuthenticated: true,
		RequestID:       req.RequestID,
		ClientAddr:      req.ClientAddr,
	}, nil
}

// bearerToken extracts the credential from an Authorization header value.
// Only the Bearer scheme is accepted; any other scheme reads as no
// credential at all.
func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrRevoked):
		return ErrTokenRevoked
	case errors.Is(err, token.ErrBackendUnavailable):
		return err
	default:
		return ErrTokenInvalid
	}
}

/*
====================================
API KEY
====================================
*/

type apiKeyHandler struct {
	keys       *apikey.Store
	header     string
	queryParam string
}

func (h *apiKeyHandler) Authenticate(_ context.Context, req *Request) (*SecurityContext, error) {
	raw := h.extract(req)
	if raw == "" {
		return nil, ErrAuthenticationRequired
	}

	rec, err := h.keys.Validate(raw)
	if err != nil {
		return nil, ErrAPIKeyInvalid
	}

	return &SecurityContext{
		UserID:          rec.OwnerID,
		Username:        rec.Name,
		AuthType:        AuthTypeAPIKey,
		KeyID:           rec.KeyID,
		Roles:           []string{"api_key_user"},
		Permissions:     rec.Permissions,
		IsAuthenticated: true,
		RequestID:       req.RequestID,
		ClientAddr:      req.ClientAddr,
		rateLimit:       rec.RateLimit,
	}, nil
}

// extract checks the configured header first, then the query parameter.
func (h *apiKeyHandler) extract(req *Request) string {
	if h.header != "" {
		if v := req.HeaderValue(h.header); v != "" {
			return v
		}
	}
	if h.queryParam != "" {
		if v := req.QueryValue(h.queryParam); v != "" {
			return v
		}
	}
	return ""
}

/*
====================================
HYBRID
====================================
*/

// hybridHandler composes the bearer and API key handlers. Bearer is the
// primary scheme: it runs first, and on double failure its error is
// surfaced. The exception is a caller that omitted the Authorization
// header entirely, which signals key-based intent, so the API key error
// is surfaced instead.
type hybridHandler struct {
	bearer AuthHandler
	apiKey AuthHandler
}

func (h *hybridHandler) Authenticate(ctx context.Context, req *Request) (*SecurityContext, error) {
	sc, bearerErr := h.bearer.Authenticate(ctx, req)
	if bearerErr == nil {
		return sc, nil
	}

	sc, apiKeyErr := h.apiKey.Authenticate(ctx, req)
	if apiKeyErr == nil {
		return sc, nil
	}

	if req.HeaderValue("Authorization") == "" {
		return nil, apiKeyErr
	}
	return nil, bearerErr
}
