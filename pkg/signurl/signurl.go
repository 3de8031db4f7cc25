// Package signurl issues and verifies signed, time-boxed URLs without any
// server-side storage of issued links. The signature covers the subject and
// purpose plus an embedded expiry, carried as an HS256 JWT in the token
// query parameter. Verification fails closed: a missing, malformed,
// tampered or expired token is always invalid.
package signurl

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidLink covers every verification failure: bad signature, wrong
// purpose, malformed token or elapsed expiry. Callers get no more detail
// than that on purpose.
var ErrInvalidLink = errors.New("signurl: invalid or expired link")

// Signer mints and verifies signed URLs for a fixed base URL and key.
type Signer struct {
	key    []byte
	issuer string
}

type linkClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func New(key, issuer string) *Signer {
	return &Signer{key: []byte(key), issuer: issuer}
}

// Sign returns baseURL+path with a token query parameter binding subject and
// purpose to an expiry ttl from now.
func (s *Signer) Sign(baseURL, path, purpose, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := linkClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signurl: sign: %w", err)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("signurl: parse base url: %w", err)
	}
	u.Path = path
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks signature, expiry and purpose together and returns the
// subject the link was issued for.
func (s *Signer) Verify(token, purpose string) (string, error) {
	if token == "" {
		return "", ErrInvalidLink
	}

	var claims linkClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidLink
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return "", ErrInvalidLink
	}
	return claims.Subject, nil
}
