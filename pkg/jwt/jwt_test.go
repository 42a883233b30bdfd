package jwt

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/juanse07/nexa-sub001/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		Issuer:         "nexa-test",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken(TokenSubject{
		Provider:  "google",
		Subject:   "sub-1",
		Name:      "Ana",
		Email:     "ana@example.com",
		Role:      RoleManager,
		ManagerID: "mgr-1",
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	if claims.Provider != "google" || claims.Subject != "sub-1" {
		t.Errorf("identity = %s:%s", claims.Provider, claims.Subject)
	}
	if claims.Role != RoleManager {
		t.Errorf("role = %s", claims.Role)
	}
	if claims.ManagerID != "mgr-1" {
		t.Errorf("manager_id = %s", claims.ManagerID)
	}
	if claims.TokenType != "access" {
		t.Errorf("token_type = %s", claims.TokenType)
	}
	if claims.Issuer != "nexa-test" {
		t.Errorf("issuer = %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("jti should not be empty")
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := newTestManager()
	m.accessTokenTTL = -time.Minute

	token, err := m.GenerateAccessToken(TokenSubject{Provider: "google", Subject: "s", Role: RoleStaff})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseToken(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m := newTestManager()
	token, _ := m.GenerateAccessToken(TokenSubject{Provider: "google", Subject: "s", Role: RoleStaff})

	other := NewManager(&config.AuthConfig{JWTSecret: "another-secret-key-0123456789"})
	if _, err := other.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_MissingIdentity(t *testing.T) {
	m := newTestManager()
	token, _ := m.GenerateAccessToken(TokenSubject{Provider: "", Subject: "s", Role: RoleStaff})
	if _, err := m.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_RejectsNoneAlg(t *testing.T) {
	m := newTestManager()
	claims := Claims{
		Provider: "google",
		Role:     RoleStaff,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, claims)
	s, err := token.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseToken(s); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	m := newTestManager()
	if _, err := m.ParseToken("not.a.token"); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
