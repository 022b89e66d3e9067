package goShield

import "context"

type securityContextKey struct{}

// WithSecurityContext attaches the resolved identity to ctx. The middleware
// package calls this on admission; downstream handlers read it back with
// [SecurityContextFromContext].
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFromContext returns the identity attached by the security
// layer, or (nil, false) on unauthenticated passthroughs.
func SecurityContextFromContext(ctx context.Context) (*SecurityContext, bool) {
	if ctx == nil {
		return nil, false
	}
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok
}
