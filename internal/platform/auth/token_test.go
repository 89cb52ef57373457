package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestServiceTokens_SignsVerifiableToken(t *testing.T) {
	s := &ServiceTokens{Key: testSigningKey, Subject: "optical-pos", Audience: "backend"}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return testSigningKey, nil
	}, jwt.WithAudience("backend"))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Subject != "optical-pos" {
		t.Errorf("expected subject optical-pos, got %q", claims.Subject)
	}
}

func TestServiceTokens_ReusesUntilNearExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := &ServiceTokens{Key: testSigningKey, TTL: time.Minute, now: func() time.Time { return now }}

	first, err := s.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(10 * time.Second)
	second, _ := s.Token()
	if second != first {
		t.Error("expected cached token to be reused")
	}

	now = now.Add(45 * time.Second)
	third, _ := s.Token()
	if third == first {
		t.Error("expected a fresh token near expiry")
	}
}

func TestServiceTokens_EmptyKey(t *testing.T) {
	s := &ServiceTokens{}
	if _, err := s.Token(); err == nil {
		t.Fatal("expected error for empty key")
	}
}
