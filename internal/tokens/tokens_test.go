package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testClaims(exp time.Time) Claims {
	return Claims{
		Email:     "seller@example.com",
		FirstName: "Sam",
		LastName:  "Seller",
		UID:       "u-1",
		UserType:  "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestSignAndParse(t *testing.T) {
	secret := []byte("secret")
	tok, err := Sign(secret, testClaims(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := Parse(secret, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "u-1" || claims.UserType != "USER" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := Parse([]byte("other"), tok); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	tok, _ := Sign(secret, testClaims(time.Now().Add(-time.Hour)))
	if _, err := Parse(secret, tok); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestInspectSkipsVerification(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	tok, _ := Sign([]byte("server-only"), testClaims(exp))

	claims, err := Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !claims.Expiry().Equal(exp) {
		t.Fatalf("expiry = %v, want %v", claims.Expiry(), exp)
	}
	if claims.Email != "seller@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}

	if _, err := Inspect("not-a-token"); err == nil {
		t.Fatal("expected decode error")
	}
}
