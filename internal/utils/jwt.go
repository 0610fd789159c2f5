// Package utils provides token creation and password hashing helpers.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/movenorth/booking-backend/internal/apperr"
)

// UserPayload is the user identity embedded in a token. Refresh tokens
// carry a reduced payload: uid, username and email only.
type UserPayload struct {
	UID        string `json:"uid"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"is_verified,omitempty"`
}

// Claims is the JWT claim set for both access and refresh tokens. The
// jti lives in RegisteredClaims.ID and is the unit of revocation.
type Claims struct {
	User    UserPayload `json:"user"`
	Refresh bool        `json:"refresh"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 JWTs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess signs an access token embedding the full user payload
// and a fresh jti.
func (t *TokenIssuer) IssueAccess(user UserPayload) (string, *Claims, error) {
	return t.issue(user, false, t.accessTTL)
}

// IssueRefresh signs a refresh token. Role and verification flag are
// stripped; a refreshed access token re-reads them from the user
// directory.
func (t *TokenIssuer) IssueRefresh(user UserPayload) (string, *Claims, error) {
	reduced := UserPayload{UID: user.UID, Username: user.Username, Email: user.Email}
	return t.issue(reduced, true, t.refreshTTL)
}

func (t *TokenIssuer) issue(user UserPayload, refresh bool, ttl time.Duration) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		User:    user,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Decode parses and verifies a token. Expired tokens map to
// KindExpiredToken, everything else that fails verification to
// KindInvalidToken. Blocklist membership is checked by the caller.
func (t *TokenIssuer) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.KindExpiredToken, "token has expired")
		}
		return nil, apperr.Wrap(apperr.KindInvalidToken, "invalid token", err)
	}
	if !tok.Valid {
		return nil, apperr.New(apperr.KindInvalidToken, "invalid token")
	}
	return claims, nil
}

// Remaining returns how long the claims are still valid; zero when
// already expired. Used to size blocklist TTLs.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
