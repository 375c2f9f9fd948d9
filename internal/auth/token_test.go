package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testUser() *User {
	return &User{
		ID:       "01TESTUSER",
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Role:     RoleManager,
		Name:     "Jane Doe",
		Status:   UserStatusActive,
	}
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("test-secret"), WithIssuer("test-issuer"))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	user := testUser()
	token, exp, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("subject mismatch: %s", claims.Subject)
	}
	if claims.Role != RoleManager {
		t.Fatalf("role mismatch: %s", claims.Role)
	}
	if claims.Username != "jdoe" || claims.Email != "jdoe@example.com" || claims.Name != "Jane Doe" {
		t.Fatalf("identity claims not preserved: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti claim")
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"))
	if _, err := issuer.Validate(""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := issuer.Validate("   "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing for blank token, got %v", err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"))
	token, _, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := issuer.Validate(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuerA, _ := NewTokenIssuer([]byte("secret-a"))
	issuerB, _ := NewTokenIssuer([]byte("secret-b"))

	token, _, err := issuerA.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuerB.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	issuer, err := NewTokenIssuer([]byte("test-secret"),
		WithAccessTTL(time.Hour),
		WithTokenClock(func() time.Time { return clock }),
	)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, exp, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = exp.Add(-time.Second)
	if _, err := issuer.Validate(token); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	// Exactly at exp the token is already expired.
	clock = exp
	if _, err := issuer.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at boundary, got %v", err)
	}

	clock = exp.Add(time.Second)
	if _, err := issuer.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past boundary, got %v", err)
	}
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"))
	user := testUser()
	user.Role = Role("superuser")
	if _, _, err := issuer.Issue(user); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseRoleFailsClosed(t *testing.T) {
	if _, err := ParseRole("root"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	role, err := ParseRole("  Admin ")
	if err != nil || role != RoleAdmin {
		t.Fatalf("expected normalized admin role, got %v %v", role, err)
	}
}
