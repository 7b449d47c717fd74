package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 60)

	token, expiresAt, err := tm.GenerateToken("internal")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("token already expired")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Client != "internal" {
		t.Errorf("client = %q", claims.Client)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("internal")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestAPIKeyHashRoundTrip(t *testing.T) {
	hashed, err := HashAPIKey("top-secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	if err := CompareAPIKey(hashed, "top-secret"); err != nil {
		t.Errorf("matching key rejected: %v", err)
	}
	if err := CompareAPIKey(hashed, "wrong"); err == nil {
		t.Error("wrong key accepted")
	}
}
