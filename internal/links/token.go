// Package links issues and verifies the two families of time-bounded access
// credentials: stateless signed long tokens, and short codes (legacy
// HMAC-signed and store-backed revocable).
package links

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "sitekeeper"
	tokenAudience = "share"
	tokenSubject  = "share-link"
)

// TokenResult reports whether a long token is valid and when it expires.
// All verification failures (bad signature, wrong claims, expired,
// malformed) are normalized to Valid=false.
type TokenResult struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenIssuer mints and verifies stateless signed long tokens. No
// revocation is possible for this family; expiry is the only invalidation
// mechanism.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue builds a signed token carrying a fresh random identifier plus
// issued-at, expiry, issuer, audience, and subject claims.
func (t *TokenIssuer) Issue() (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		Subject:   tokenSubject,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates the signature and all claims.
func (t *TokenIssuer) Verify(tokenString string) TokenResult {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return TokenResult{}
	}
	return TokenResult{Valid: true, ExpiresAt: claims.ExpiresAt.Time}
}
