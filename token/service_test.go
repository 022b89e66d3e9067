package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() Config {
	return Config{
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		SigningMethod: "hs256",
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "goshield-test",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty secret", func(c *Config) { c.Secret = nil }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"access not shorter than refresh", func(c *Config) { c.AccessTTL = c.RefreshTTL }},
		{"unknown method", func(c *Config) { c.SigningMethod = "rs256" }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Leeway = 3 * time.Minute }},
		{"blank issuer", func(c *Config) { c.Issuer = "  " }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewService(cfg, nil); err == nil {
				t.Fatal("expected construction error, got nil")
			}
		})
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueAccess("user-1", "alice", []string{"admin"}, []string{"read", "write"})
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := svc.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected identity: %q/%q", claims.Subject, claims.Username)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("unexpected kind: %q", claims.Kind)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected a token ID")
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.IssueAccess("", "alice", nil, nil); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := newTestService(t)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	tok, err := svc.IssueAccess("user-1", "alice", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyLeewayToleratesSkew(t *testing.T) {
	cfg := testConfig()
	cfg.Leeway = 30 * time.Second
	svc, err := NewService(cfg, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	tok, err := svc.IssueAccess("user-1", "alice", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	// 10s past expiry, inside the leeway window.
	svc.now = func() time.Time { return issued.Add(30*time.Minute + 10*time.Second) }
	if _, err := svc.Verify(context.Background(), tok); err != nil {
		t.Fatalf("expected leeway to tolerate skew, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueAccess("user-1", "alice", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	tampered := tok[:len(tok)-2] + "xx"
	if _, err := svc.Verify(context.Background(), tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	other := testConfig()
	other.Issuer = "someone-else"
	otherSvc, err := NewService(other, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	tok, err := otherSvc.IssueAccess("user-1", "alice", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	svc := newTestService(t)
	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign issuer, got %v", err)
	}
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	svc := newTestService(t)

	// Same secret, different HMAC variant. Must fail even though the
	// signature itself would verify under hs512.
	claims := Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "goshield-test",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "confused",
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testConfig().Secret)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for algorithm confusion, got %v", err)
	}
}

func TestVerifyRejectsRevoked(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueAccess("user-1", "alice", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	claims, err := svc.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := svc.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestRefreshRotatesAndRevokesOld(t *testing.T) {
	svc := newTestService(t)

	refresh, err := svc.IssueRefresh("user-1", "alice")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	access, newRefresh, err := svc.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if access == "" || newRefresh == "" || newRefresh == refresh {
		t.Fatal("expected a fresh token pair")
	}

	// The consumed refresh token must be dead.
	if _, _, err := svc.Refresh(context.Background(), refresh); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on reuse, got %v", err)
	}

	// The replacement still works.
	if _, _, err := svc.Refresh(context.Background(), newRefresh); err != nil {
		t.Fatalf("rotated refresh token should work: %v", err)
	}
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	svc := newTestService(t)

	refresh, err := svc.IssueRefresh("user-1", "alice")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := svc.Refresh(context.Background(), refresh)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService(t)

	access, err := svc.IssueAccess("user-1", "alice", []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for access token, got %v", err)
	}
}

func TestRefreshTokenCarriesNoAuthority(t *testing.T) {
	svc := newTestService(t)

	refresh, err := svc.IssueRefresh("user-1", "alice")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	claims, err := svc.Verify(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Kind != KindRefresh {
		t.Fatalf("unexpected kind: %q", claims.Kind)
	}
	if len(claims.Roles) != 0 || len(claims.Permissions) != 0 {
		t.Fatalf("refresh token must not carry roles or permissions: %v/%v", claims.Roles, claims.Permissions)
	}
}
