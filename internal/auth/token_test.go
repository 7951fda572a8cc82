package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "p1",
		Name: "Avery",
		Role: "gamemaster",
		Code: "CAVE",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "p1" || claims.Name != "Avery" || claims.Role != "gamemaster" || claims.Code != "CAVE" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "p1",
		Name: "Avery",
		Role: "player",
		Code: "CAVE",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTamperedSignature(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "p1",
		Name: "Avery",
		Role: "player",
		Code: "CAVE",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsMissingCode(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "p1",
		Name: "Avery",
		Role: "player",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing code, got %v", err)
	}
}

func TestVerifyAdminKey(t *testing.T) {
	hash, err := HashAdminKey("open-sesame")
	if err != nil {
		t.Fatalf("HashAdminKey() error = %v", err)
	}
	if err := VerifyAdminKey(hash, "open-sesame"); err != nil {
		t.Fatalf("expected matching key to verify, got %v", err)
	}
	if err := VerifyAdminKey(hash, "wrong"); !errors.Is(err, ErrAdminKeyMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := VerifyAdminKey("", "anything"); !errors.Is(err, ErrAdminKeyMismatch) {
		t.Fatalf("empty hash must disable admin access, got %v", err)
	}
}
