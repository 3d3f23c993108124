package auth

import (
	"testing"
	"time"

	"github.com/Call-Sure-AI/csai-realtime/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "csai",
		JWTAudience:    "csai-dashboard",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return m
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	tok, err := m.Issue(now, "user-1", "company-1", "agent")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.CompanyID != "company-1" || claims.Role != "agent" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	tok, err := m.Issue(now, "user-1", "company-1", "agent")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Past the TTL plus the 30s leeway.
	if _, err := m.Verify(tok, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "other-secret"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	now := time.Now()
	tok, err := other.Issue(now, "user-1", "company-1", "agent")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
