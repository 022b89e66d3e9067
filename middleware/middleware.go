package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	goShield "github.com/MrEthical07/goShield"
	"github.com/MrEthical07/goShield/internal/rate"
	"github.com/MrEthical07/goShield/token"
)

const (
	headerRequestID = "X-Request-ID"
	headerAuthType  = "X-Auth-Type"
)

// errorPayload is the wire shape of every rejection. error is the machine
// code, error_description the human-readable text.
type errorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Timestamp        string `json:"timestamp"`
	RequestID        string `json:"request_id"`
}

// Secure wraps next with the full decision pipeline. Rejections never reach
// next; admitted requests carry the SecurityContext in their context and
// echo the request ID and auth type as response headers.
func Secure(m *goShield.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := normalize(r)
		w.Header().Set(headerRequestID, req.RequestID)

		sc, err := m.Authorize(r.Context(), req)
		if err != nil {
			writeError(w, req.RequestID, err)
			return
		}

		if sc.IsAuthenticated {
			w.Header().Set(headerAuthType, string(sc.AuthType))
		}

		ctx := goShield.WithSecurityContext(r.Context(), sc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles guards an already-secured handler: the request must carry an
// authenticated context holding every named role.
func RequireRoles(m *goShield.Manager, next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := goShield.SecurityContextFromContext(r.Context())
		if !ok || !sc.IsAuthenticated {
			writeError(w, requestID(r), goShield.ErrAuthenticationRequired)
			return
		}
		if err := m.RequireRoles(r.Context(), sc, roles...); err != nil {
			writeError(w, sc.RequestID, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermissions guards an already-secured handler: the request must
// carry an authenticated context holding every named permission.
func RequirePermissions(m *goShield.Manager, next http.Handler, perms ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := goShield.SecurityContextFromContext(r.Context())
		if !ok || !sc.IsAuthenticated {
			writeError(w, requestID(r), goShield.ErrAuthenticationRequired)
			return
		}
		if err := m.RequirePermissions(r.Context(), sc, perms...); err != nil {
			writeError(w, sc.RequestID, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// normalize flattens the pieces of an *http.Request the core consumes.
// A missing request ID is generated here so every decision, audit event,
// and error payload for this request shares one ID.
func normalize(r *http.Request) *goShield.Request {
	return &goShield.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		Query:      r.URL.Query(),
		ClientAddr: clientAddr(r),
		RequestID:  requestID(r),
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(headerRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// peer address without its port.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusUnauthorized
	code := goShield.ErrorCode(err)

	var rl *goShield.RateLimitError
	switch {
	case errors.As(err, &rl):
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", retryAfterSeconds(rl.RetryAfter))
	case errors.Is(err, goShield.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, goShield.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, token.ErrBackendUnavailable), errors.Is(err, rate.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
		code = "service_unavailable"
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(errorPayload{
		Error:            code,
		ErrorDescription: err.Error(),
		ErrorCode:        code,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		RequestID:        requestID,
	})
}

// retryAfterSeconds rounds up so a client that waits the advertised time
// always lands in the next window.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
