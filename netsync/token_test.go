package netsync

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue("client-1", 12)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.ObjectID != 12 || claims.Subject != "client-1" {
		t.Errorf("claims = %d/%q, want 12/client-1", claims.ObjectID, claims.Subject)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	valid, _ := issuer.Issue("client-1", 1)
	foreign, _ := NewTokenIssuer("other", time.Hour).Issue("client-1", 1)
	expired, _ := NewTokenIssuer("secret", -time.Minute).Issue("client-1", 1)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"truncated":    valid[:len(valid)-4],
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
