package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testClaims(exp time.Time) Claims {
	return Claims{
		Sub:   "usr_1",
		Email: "avery@example.com",
		Role:  "member",
		JTI:   "jti-1",
		Exp:   exp.Unix(),
	}
}

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, testClaims(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "usr_1" || claims.Email != "avery@example.com" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, testClaims(time.Now().Add(-time.Minute)))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, testClaims(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	cases := map[string]string{
		"wrong secret":  issued,
		"no signature":  strings.Split(issued, ".")[0],
		"extra segment": issued + ".x",
		"garbage":       "not-a-token",
	}
	for name, token := range cases {
		key := secret
		if name == "wrong secret" {
			key = []byte("other")
		}
		if _, err := ParseToken(key, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestParseTokenRequiresSubject(t *testing.T) {
	claims := testClaims(time.Now().Add(time.Hour))
	claims.Sub = ""
	issued, _ := IssueToken([]byte("secret"), claims)
	if _, err := ParseToken([]byte("secret"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshTokensAreUniqueAndHashed(t *testing.T) {
	a, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	b, _ := NewRefreshToken()
	if a == b {
		t.Fatal("expected distinct refresh tokens")
	}
	if HashToken(a) == a || len(HashToken(a)) != 64 {
		t.Fatalf("unexpected hash %q", HashToken(a))
	}
	if HashToken(a) != HashToken(a) {
		t.Fatal("hash must be deterministic")
	}
}
