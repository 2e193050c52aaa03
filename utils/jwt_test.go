package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.GenerateToken(userID, "a@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := issuer.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestParseTokenRejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, _ := issuer.GenerateToken(uuid.New(), "a@example.com")

	tests := []struct {
		name   string
		issuer *TokenIssuer
		token  string
	}{
		{"wrong secret", NewTokenIssuer("other-secret", time.Hour), token},
		{"garbage", issuer, "not-a-token"},
	}

	expired, _ := NewTokenIssuer("test-secret", -time.Minute).GenerateToken(uuid.New(), "b@example.com")
	tests = append(tests, struct {
		name   string
		issuer *TokenIssuer
		token  string
	}{"expired", issuer, expired})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.issuer.ParseToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	p := PaginationQuery{Page: 0, Limit: 500}
	p.Normalize()
	if p.Page != 1 || p.Limit != 20 {
		t.Errorf("Normalize() = %+v", p)
	}
	p = PaginationQuery{Page: 3, Limit: 10}
	if p.Offset() != 20 {
		t.Errorf("Offset() = %d, want 20", p.Offset())
	}
}
