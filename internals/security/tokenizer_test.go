package security

import (
	"testing"
	"watchtower/config"
	"watchtower/pkg/apperror"
)

func TestTokenService_GenerateThenValidate(t *testing.T) {
	ts := NewTokenService(&config.AuthConfig{Secret: "test-secret", ExpiryMin: 15})

	tok, err := ts.GenerateAccessToken(RequestClaims{Operator: "alice", Role: "operator"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ts.ValidateAccessToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Operator != "alice" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.IsZero() {
		t.Fatalf("expiry not set")
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenService(&config.AuthConfig{Secret: "secret-a", ExpiryMin: 15}).
		GenerateAccessToken(RequestClaims{Operator: "alice", Role: "operator"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = NewTokenService(&config.AuthConfig{Secret: "secret-b", ExpiryMin: 15}).ValidateAccessToken(tok)
	if !apperror.IsKind(err, apperror.Unauthorised) {
		t.Fatalf("want unauthorised, got %v", err)
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	ts := NewTokenService(&config.AuthConfig{Secret: "test-secret", ExpiryMin: 15})

	if _, err := ts.ValidateAccessToken("not-a-token"); !apperror.IsKind(err, apperror.Unauthorised) {
		t.Fatalf("want unauthorised, got %v", err)
	}
}
