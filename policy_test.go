package goShield

import "testing"

func TestPolicyClassify(t *testing.T) {
	policy := newProtectionPolicy(PathConfig{
		Excluded:  []string{"/docs", "/health", "/api/v1/status"},
		Protected: []string{"/api"},
	}, LevelPublic)

	tests := []struct {
		path string
		want PathClass
	}{
		{"/docs", ClassExcluded},
		{"/docs/swagger", ClassExcluded},
		{"/health", ClassExcluded},
		{"/api", ClassProtected},
		{"/api/v1/users", ClassProtected},
		{"/api/v1/status", ClassExcluded}, // exclusion wins over protection
		{"/apiv1", ClassDefault},          // segment boundary, no prefix leak
		{"/docsify", ClassDefault},
		{"/", ClassDefault},
		{"/other", ClassDefault},
	}

	for _, tc := range tests {
		if got := policy.Classify(tc.path); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestPolicyProtectedFollowsDefaultLevel(t *testing.T) {
	paths := PathConfig{
		Excluded:  []string{"/health"},
		Protected: []string{"/api/v1"},
	}

	public := newProtectionPolicy(paths, LevelPublic)
	protected := newProtectionPolicy(paths, LevelProtected)

	if public.Protected("/unclassified") {
		t.Fatal("public default should not protect unclassified paths")
	}
	if !protected.Protected("/unclassified") {
		t.Fatal("protected default should protect unclassified paths")
	}

	// Explicit classifications ignore the default level.
	for _, p := range []*ProtectionPolicy{public, protected} {
		if p.Protected("/health") {
			t.Fatal("excluded path must never be protected")
		}
		if !p.Protected("/api/v1/users") {
			t.Fatal("protected prefix must always be protected")
		}
	}
}

func TestPolicyTrailingSlashPrefix(t *testing.T) {
	policy := newProtectionPolicy(PathConfig{
		Protected: []string{"/api/"},
	}, LevelPublic)

	if !policy.Protected("/api/users") {
		t.Fatal("trailing slash in the configured prefix should not break matching")
	}
	if !policy.Protected("/api") {
		t.Fatal("exact match should survive trailing slash normalization")
	}
}
