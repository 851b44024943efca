package auth

import (
	"testing"
	"time"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken("user-123")

	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.VerifyToken(token)

	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}

	if claims.UserID != "user-123" {
		t.Fatalf("UserID = %q, want %q", claims.UserID, "user-123")
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	other := NewManager("other-secret", time.Hour)

	token, err := m.GenerateToken("user-123")

	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = other.VerifyToken(token)

	if err == nil {
		t.Fatal("expected verification with a different secret to fail")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	_, err := m.VerifyToken("not.a.token")

	if err == nil {
		t.Fatal("expected garbage token to fail verification")
	}
}

func TestZeroTTLOmitsExpiry(t *testing.T) {
	m := NewManager("test-secret", 0)

	token, err := m.GenerateToken("user-123")

	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.VerifyToken(token)

	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}

	if claims.ExpiresAt != nil {
		t.Fatal("expected no expiry claim with zero ttl")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewManager("test-secret", time.Nanosecond)

	token, err := m.GenerateToken("user-123")

	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = m.VerifyToken(token)

	if err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}
