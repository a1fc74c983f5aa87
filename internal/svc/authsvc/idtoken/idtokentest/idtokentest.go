// Package idtokentest mints RS256 ID tokens for tests.
package idtokentest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/itemcatalog/internal/svc/authsvc/idtoken"
)

const (
	KeyID    = "test-kid"
	ClientID = "catalog-test.apps.example.com"
	Issuer   = "https://accounts.google.com"
)

// TokenIssuer signs tokens with a freshly generated RSA key.
type TokenIssuer struct {
	Key *rsa.PrivateKey
}

// New generates a 2048 bit signing key.
func New(t *testing.T) *TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return &TokenIssuer{Key: key}
}

// KeySource returns a key source that knows the issuer's public key under KeyID.
func (i *TokenIssuer) KeySource() idtoken.StaticKeySource {
	return idtoken.StaticKeySource{KeyID: &i.Key.PublicKey}
}

// Config returns a verifier configuration accepting tokens for ClientID from Issuer.
func (i *TokenIssuer) Config() idtoken.Config {
	//nolint:exhaustruct
	return idtoken.Config{
		ClientID: ClientID,
		Issuers:  []string{"accounts.google.com", Issuer},
	}
}

// Verifier returns a verifier for tokens of this issuer.
func (i *TokenIssuer) Verifier() *idtoken.Verifier {
	return idtoken.NewVerifier(i.Config(), i.KeySource())
}

// Claims returns valid claims for email, valid for one hour.
func Claims(email, givenName string) idtoken.Claims {
	now := time.Now()

	//nolint:exhaustruct
	return idtoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "sub-" + email,
			Audience:  jwt.ClaimStrings{ClientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:     email,
		GivenName: givenName,
	}
}

// Sign returns the signed token for claims.
func (i *TokenIssuer) Sign(t *testing.T, claims idtoken.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID

	raw, err := token.SignedString(i.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return raw
}
