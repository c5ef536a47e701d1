package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"agendafit.app/internal/checkin"
)

func TestGenerateAndValidate(t *testing.T) {
	tokens, err := NewTokens("test-secret", WithIssuer("test-issuer"))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	token, expiresAt, err := tokens.GenerateToken("user-42", " franquia ", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := tokens.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	u := claims.User()
	if u.ID != "user-42" || u.Role != checkin.RoleFranquia {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	a, _ := NewTokens("secret-a")
	b, _ := NewTokens("secret-b")
	other, _ := NewTokens("secret-a", WithIssuer("someone-else"))

	token, _, err := a.GenerateToken("u1", "STUDENT", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := other.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
	if _, err := a.ParseAndValidate("   "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	tokens, _ := NewTokens("secret", WithClock(func() time.Time { return now }))

	token, _, err := tokens.GenerateToken("u1", "TEACHER", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now = issued.Add(2 * time.Minute)
	if _, err := tokens.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestGenerateValidation(t *testing.T) {
	if _, err := NewTokens(" "); err == nil {
		t.Fatal("expected missing secret error")
	}
	tokens, _ := NewTokens("secret")
	if _, _, err := tokens.GenerateToken("", "ADMIN", time.Minute); err == nil {
		t.Fatal("expected error for empty user")
	}
	if _, _, err := tokens.GenerateToken("u1", "ADMIN", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserFromContext(ctx); ok {
		t.Fatal("unexpected user in empty context")
	}

	ctx = ContextWithUser(ctx, checkin.User{ID: " user-7 ", Role: " SUPER_ADMIN "})
	u, ok := UserFromContext(ctx)
	if !ok || u.ID != "user-7" {
		t.Fatalf("unexpected user: %+v ok=%v", u, ok)
	}
	if u.Role != checkin.RoleSuperAdmin {
		t.Fatalf("role not trimmed: %q", u.Role)
	}
}

func TestLowercaseRoleIsNotAdmin(t *testing.T) {
	tokens, err := NewTokens("secret")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, _, err := tokens.GenerateToken("u1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := tokens.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u := claims.User()
	if u.ID != "u1" || u.Role != checkin.Role("admin") {
		t.Fatalf("unexpected user: %+v", u)
	}
	if checkin.IsAdminRole(u.Role) {
		t.Fatal("lowercase admin must not be treated as ADMIN")
	}
}
