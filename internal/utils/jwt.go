// Package utils provides token issuing and password hashing helpers.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// AccessToken is a signed JWT with its expiry.  Access tokens are
// short-lived and sent as a Bearer token (or the access_token query
// parameter for websocket upgrades).
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a random opaque token.  Only its SHA-256 hash is stored
// server side.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims are the JWT claims of an access token.  The subject holds the
// decimal user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// NewAccessToken signs an HS256 JWT for the user, valid for ttl from now.
func NewAccessToken(secret string, userID uint64, role model.Role, ttl time.Duration, now time.Time) (AccessToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// ParseAccessToken verifies signature, algorithm and expiry and returns the
// claims.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	return ParseAccessTokenAt(secret, raw, time.Now())
}

// ParseAccessTokenAt is ParseAccessToken with expiry judged at now.
func ParseAccessTokenAt(secret, raw string, now time.Time) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if _, err := model.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}
	return &claims, nil
}

// NewRefreshToken returns 48 random bytes hex encoded, valid for ttlDays.
func NewRefreshToken(ttlDays int, now time.Time) (RefreshToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf),
		Exp: now.UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the hex SHA-256 of a raw refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
