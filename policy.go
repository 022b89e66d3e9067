package goShield

import "strings"

// PathClass is the result of classifying a request path against the
// configured prefix lists.
type PathClass uint8

const (
	// ClassDefault means no prefix matched; behavior follows DefaultLevel.
	ClassDefault PathClass = iota
	// ClassExcluded means the path skips authentication and rate limiting.
	ClassExcluded
	// ClassProtected means the path requires authentication.
	ClassProtected
)

// ProtectionPolicy decides, from the request path alone, whether
// authentication is required, excluded, or left to the default level.
// It is immutable after construction.
type ProtectionPolicy struct {
	excluded     []string
	protected    []string
	defaultLevel SecurityLevel
}

func newProtectionPolicy(cfg PathConfig, defaultLevel SecurityLevel) *ProtectionPolicy {
	return &ProtectionPolicy{
		excluded:     cloneStrings(cfg.Excluded),
		protected:    cloneStrings(cfg.Protected),
		defaultLevel: defaultLevel,
	}
}

// Classify checks excluded prefixes first, then protected ones. Exclusion
// always wins, even when a path also matches a protected prefix.
func (p *ProtectionPolicy) Classify(path string) PathClass {
	for _, prefix := range p.excluded {
		if matchSegmentPrefix(path, prefix) {
			return ClassExcluded
		}
	}
	for _, prefix := range p.protected {
		if matchSegmentPrefix(path, prefix) {
			return ClassProtected
		}
	}
	return ClassDefault
}

// Protected resolves Classify through the default level: a ClassDefault path
// behaves as protected only when the default level says so.
func (p *ProtectionPolicy) Protected(path string) bool {
	switch p.Classify(path) {
	case ClassExcluded:
		return false
	case ClassProtected:
		return true
	default:
		return p.defaultLevel == LevelProtected
	}
}

// matchSegmentPrefix is exact-segment prefix matching: a path matches when
// it equals the prefix or continues it with a "/". "/apiv1" must not match
// an "/api" rule.
func matchSegmentPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
