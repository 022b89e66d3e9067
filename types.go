package goShield

import "net/http"

// AuthType records which credential scheme produced a SecurityContext.
type AuthType string

const (
	// AuthTypeBearer marks contexts derived from a signed bearer token.
	AuthTypeBearer AuthType = "bearer"
	// AuthTypeAPIKey marks contexts derived from an API key.
	AuthTypeAPIKey AuthType = "api_key"
	// AuthTypeNone marks passthrough contexts (security disabled or
	// excluded paths).
	AuthTypeNone AuthType = "none"
)

// Request is the normalized request descriptor the security core consumes.
// The transport adapter (middleware package, or any other framework glue)
// fills it in; the core never reads the wire itself.
type Request struct {
	Method     string
	Path       string
	Header     map[string][]string
	Query      map[string][]string
	ClientAddr string
	RequestID  string
}

// HeaderValue returns the first value for the named header, or "".
// net/http stores incoming keys in canonical MIME form ("X-API-Key"
// arrives as "X-Api-Key"), so the canonical spelling is tried first;
// adapters that fill the map by hand may use the exact name instead.
func (r *Request) HeaderValue(name string) string {
	if r == nil || len(r.Header) == 0 {
		return ""
	}
	if v := http.Header(r.Header).Get(name); v != "" {
		return v
	}
	if vs, ok := r.Header[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// QueryValue returns the first value for the named query parameter, or "".
func (r *Request) QueryValue(name string) string {
	if r == nil || len(r.Query) == 0 {
		return ""
	}
	if vs, ok := r.Query[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// SecurityContext is the resolved identity attached to an authorized
// request. It is immutable and request-scoped; it is never persisted.
type SecurityContext struct {
	UserID          string
	Username        string
	AuthType        AuthType
	KeyID           string // set for API key authentication
	Roles           []string
	Permissions     []string
	IsAuthenticated bool
	RequestID       string
	ClientAddr      string

	// rateLimit is the per-key override carried from an API key record;
	// 0 means the global budget applies.
	rateLimit int
}

// HasRole reports whether the context carries the named role.
func (c *SecurityContext) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the context carries the named permission.
func (c *SecurityContext) HasPermission(perm string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// identityKey is the rate-limit identity for this context: user ID when
// authenticated, else the API key ID, else the client address.
func (c *SecurityContext) identityKey() string {
	if c == nil {
		return "unknown"
	}
	if c.UserID != "" {
		return c.UserID
	}
	if c.KeyID != "" {
		return c.KeyID
	}
	if c.ClientAddr != "" {
		return c.ClientAddr
	}
	return "unknown"
}

// Stats is the statistics surface exposed for an external status endpoint.
type Stats struct {
	RequestsAdmitted    uint64 `json:"requests_admitted"`
	RequestsRejected    uint64 `json:"requests_rejected"`
	RequestsRateLimited uint64 `json:"requests_rate_limited"`
	ActiveAPIKeys       uint64 `json:"active_api_keys"`
	RevokedAPIKeys      uint64 `json:"revoked_api_keys"`
}
